package stripegw

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"

	"github.com/stripe/stripe-go/v79"
)

const testWebhookSecret = "whsec_test_secret"

func signedHeader(payload string) http.Header {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	signature := hex.EncodeToString(mac.Sum(nil))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, signature))
	return headers
}

func eventPayload(eventType, object string) string {
	return fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object)
}

func newTestGateway() *Gateway {
	return New("sk_test_key", testWebhookSecret, observability.NewLogger())
}

func TestHandleWebhookPaymentSucceeded(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("payment_intent.succeeded",
		`{"id":"pi_123","amount":10000,"amount_received":10000,"currency":"usd","metadata":{"order_id":"ord-1"}}`)

	event, err := g.HandleWebhook(context.Background(), []byte(payload), signedHeader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != gateway.EventTypePayment {
		t.Errorf("expected payment event, got %s", event.Type)
	}
	if event.Status != gateway.EventStatusSuccess {
		t.Errorf("expected success status, got %s", event.Status)
	}
	if event.OrderID != "ord-1" {
		t.Errorf("expected order id ord-1, got %q", event.OrderID)
	}
	if event.TransactionID != "pi_123" {
		t.Errorf("expected transaction id pi_123, got %q", event.TransactionID)
	}
	if event.Amount != 10000 {
		t.Errorf("expected amount 10000, got %d", event.Amount)
	}
	if event.Currency != "USD" {
		t.Errorf("expected currency USD, got %q", event.Currency)
	}
}

func TestHandleWebhookPaymentFailed(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("payment_intent.payment_failed",
		`{"id":"pi_456","amount":5000,"currency":"usd","metadata":{"order_id":"ord-2"}}`)

	event, err := g.HandleWebhook(context.Background(), []byte(payload), signedHeader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Status != gateway.EventStatusFailed {
		t.Errorf("expected failed status, got %s", event.Status)
	}
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("payment_intent.succeeded", `{"id":"pi_123"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=12345,v1=deadbeef")

	_, err := g.HandleWebhook(context.Background(), []byte(payload), headers)
	if !errors.Is(err, gateway.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestHandleWebhookTamperedBody(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("payment_intent.succeeded", `{"id":"pi_123","amount":10000}`)
	headers := signedHeader(payload)

	tampered := eventPayload("payment_intent.succeeded", `{"id":"pi_123","amount":99999}`)
	_, err := g.HandleWebhook(context.Background(), []byte(tampered), headers)
	if !errors.Is(err, gateway.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestHandleWebhookChargeRefunded(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("charge.refunded",
		`{"id":"ch_1","amount":10000,"amount_refunded":2500,"currency":"usd","payment_intent":"pi_123","metadata":{"order_id":"ord-3"}}`)

	event, err := g.HandleWebhook(context.Background(), []byte(payload), signedHeader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != gateway.EventTypeRefund {
		t.Errorf("expected refund event, got %s", event.Type)
	}
	if event.Status != gateway.EventStatusSuccess {
		t.Errorf("expected success status, got %s", event.Status)
	}
	if event.Amount != 2500 {
		t.Errorf("expected refunded amount 2500, got %d", event.Amount)
	}
	if event.TransactionID != "pi_123" {
		t.Errorf("expected transaction id pi_123, got %q", event.TransactionID)
	}
}

func TestHandleWebhookCheckoutSessionUnpaid(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("checkout.session.completed",
		`{"id":"cs_1","client_reference_id":"ord-4","amount_total":7500,"currency":"usd","payment_status":"unpaid","payment_intent":"pi_789"}`)

	event, err := g.HandleWebhook(context.Background(), []byte(payload), signedHeader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Status != gateway.EventStatusPending {
		t.Errorf("expected pending status for unpaid session, got %s", event.Status)
	}
	if event.Metadata[gateway.MetaRequiresVerification] != "true" {
		t.Error("expected unpaid session to require verification")
	}
	if event.OrderID != "ord-4" {
		t.Errorf("expected order id ord-4, got %q", event.OrderID)
	}
	if event.TransactionID != "pi_789" {
		t.Errorf("expected transaction id pi_789, got %q", event.TransactionID)
	}
}

func TestHandleWebhookCheckoutSessionPaid(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("checkout.session.completed",
		`{"id":"cs_2","client_reference_id":"ord-5","amount_total":7500,"currency":"usd","payment_status":"paid"}`)

	event, err := g.HandleWebhook(context.Background(), []byte(payload), signedHeader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Status != gateway.EventStatusSuccess {
		t.Errorf("expected success status for paid session, got %s", event.Status)
	}
	if _, ok := event.Metadata[gateway.MetaRequiresVerification]; ok {
		t.Error("paid session should not require verification")
	}
}

func TestHandleWebhookSetupIntentSucceeded(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("setup_intent.succeeded",
		`{"id":"seti_1","payment_method":"pm_42","metadata":{"order_id":"ord-6"}}`)

	event, err := g.HandleWebhook(context.Background(), []byte(payload), signedHeader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != gateway.EventTypeSetup {
		t.Errorf("expected setup event, got %s", event.Type)
	}
	if event.Metadata["payment_method"] != "pm_42" {
		t.Errorf("expected saved payment method pm_42, got %q", event.Metadata["payment_method"])
	}
}

func TestHandleWebhookUnknownEventType(t *testing.T) {
	g := newTestGateway()
	payload := eventPayload("customer.created", `{"id":"cus_1"}`)

	event, err := g.HandleWebhook(context.Background(), []byte(payload), signedHeader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != gateway.EventTypeUnknown {
		t.Errorf("expected unknown event type, got %s", event.Type)
	}
}

func TestChargeStoredPaymentMethodRequiresStoredMethod(t *testing.T) {
	g := newTestGateway()
	_, err := g.ChargeStoredPaymentMethod(context.Background(), gateway.PaymentPayload{OrderID: "ord-7"})
	if !errors.Is(err, gateway.ErrMissingStoredMethod) {
		t.Fatalf("expected ErrMissingStoredMethod, got %v", err)
	}
}

func TestMapStripeError(t *testing.T) {
	declined := &stripe.Error{Code: stripe.ErrorCodeCardDeclined}
	if !errors.Is(mapStripeError(declined), gateway.ErrCardDeclined) {
		t.Error("expected card decline to map to ErrCardDeclined")
	}

	outage := &stripe.Error{HTTPStatusCode: http.StatusBadGateway}
	if !errors.Is(mapStripeError(outage), gateway.ErrGatewayUnavailable) {
		t.Error("expected 5xx to map to ErrGatewayUnavailable")
	}

	other := errors.New("boom")
	if mapStripeError(other) != other {
		t.Error("expected unrelated errors to pass through")
	}
}

func TestMapIntentStatus(t *testing.T) {
	cases := []struct {
		in   stripe.PaymentIntentStatus
		want gateway.EventStatus
	}{
		{stripe.PaymentIntentStatusSucceeded, gateway.EventStatusSuccess},
		{stripe.PaymentIntentStatusCanceled, gateway.EventStatusCancelled},
		{stripe.PaymentIntentStatusRequiresPaymentMethod, gateway.EventStatusFailed},
		{stripe.PaymentIntentStatusProcessing, gateway.EventStatusPending},
	}
	for _, tc := range cases {
		if got := mapIntentStatus(tc.in); got != tc.want {
			t.Errorf("mapIntentStatus(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
