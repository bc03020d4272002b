package midtransgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"
)

const testServerKey = "SB-Mid-server-test-key"

func newTestGateway() *Gateway {
	return New(testServerKey, false, observability.NewLogger())
}

func signedNotification(t *testing.T, fields map[string]string) []byte {
	t.Helper()
	fields["signature_key"] = computeSignature(
		fields["order_id"], fields["status_code"], fields["gross_amount"], testServerKey)
	body, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("failed to marshal notification: %v", err)
	}
	return body
}

func TestHandleWebhookSettlement(t *testing.T) {
	g := newTestGateway()
	body := signedNotification(t, map[string]string{
		"transaction_status": "settlement",
		"transaction_id":     "txn-1",
		"status_code":        "200",
		"order_id":           "ord-1",
		"gross_amount":       "10000.00",
		"currency":           "IDR",
	})

	event, err := g.HandleWebhook(context.Background(), body, nil)
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
	if event.TransactionID != "txn-1" {
		t.Errorf("expected transaction id txn-1, got %q", event.TransactionID)
	}
	if event.Amount != 1000000 {
		t.Errorf("expected amount 1000000 minor units, got %d", event.Amount)
	}
}

func TestHandleWebhookBadSignature(t *testing.T) {
	g := newTestGateway()
	body, _ := json.Marshal(map[string]string{
		"transaction_status": "settlement",
		"status_code":        "200",
		"order_id":           "ord-1",
		"gross_amount":       "10000.00",
		"signature_key":      "forged",
	})

	_, err := g.HandleWebhook(context.Background(), body, nil)
	if !errors.Is(err, gateway.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestHandleWebhookRefund(t *testing.T) {
	g := newTestGateway()
	// gross_amount stays the original charge total; the refunded money is
	// reported in refund_amount
	body := signedNotification(t, map[string]string{
		"transaction_status": "partial_refund",
		"transaction_id":     "txn-2",
		"status_code":        "200",
		"order_id":           "ord-2",
		"gross_amount":       "10000.00",
		"refund_amount":      "2000.00",
		"currency":           "IDR",
	})

	event, err := g.HandleWebhook(context.Background(), body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != gateway.EventTypeRefund {
		t.Errorf("expected refund event, got %s", event.Type)
	}
	if event.Status != gateway.EventStatusSuccess {
		t.Errorf("expected success status, got %s", event.Status)
	}
	if event.Amount != 200000 {
		t.Errorf("expected refunded amount 200000 minor units, got %d", event.Amount)
	}
}

func TestHandleWebhookRefundWithoutRefundAmount(t *testing.T) {
	g := newTestGateway()
	body := signedNotification(t, map[string]string{
		"transaction_status": "refund",
		"transaction_id":     "txn-3",
		"status_code":        "200",
		"order_id":           "ord-3",
		"gross_amount":       "5000.00",
		"currency":           "IDR",
	})

	event, err := g.HandleWebhook(context.Background(), body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Amount != 500000 {
		t.Errorf("expected fallback to gross amount 500000, got %d", event.Amount)
	}
}

func TestMapTransactionStatus(t *testing.T) {
	cases := []struct {
		status     string
		fraud      string
		wantStatus gateway.EventStatus
		wantType   gateway.EventType
	}{
		{"settlement", "", gateway.EventStatusSuccess, gateway.EventTypePayment},
		{"capture", "accept", gateway.EventStatusSuccess, gateway.EventTypePayment},
		{"capture", "challenge", gateway.EventStatusPending, gateway.EventTypePayment},
		{"pending", "", gateway.EventStatusPending, gateway.EventTypePayment},
		{"deny", "", gateway.EventStatusFailed, gateway.EventTypePayment},
		{"failure", "", gateway.EventStatusFailed, gateway.EventTypePayment},
		{"cancel", "", gateway.EventStatusCancelled, gateway.EventTypePayment},
		{"expire", "", gateway.EventStatusCancelled, gateway.EventTypePayment},
		{"refund", "", gateway.EventStatusSuccess, gateway.EventTypeRefund},
		{"partial_refund", "", gateway.EventStatusSuccess, gateway.EventTypeRefund},
		{"something_else", "", gateway.EventStatusPending, gateway.EventTypeUnknown},
	}
	for _, tc := range cases {
		gotStatus, gotType := mapTransactionStatus(tc.status, tc.fraud)
		if gotStatus != tc.wantStatus || gotType != tc.wantType {
			t.Errorf("mapTransactionStatus(%s, %s) = (%s, %s), want (%s, %s)",
				tc.status, tc.fraud, gotStatus, gotType, tc.wantStatus, tc.wantType)
		}
	}
}

func TestComputeSignature(t *testing.T) {
	first := computeSignature("ord-1", "200", "10000.00", testServerKey)
	second := computeSignature("ord-1", "200", "10000.00", testServerKey)
	if first != second {
		t.Error("signature must be deterministic")
	}
	if first == computeSignature("ord-2", "200", "10000.00", testServerKey) {
		t.Error("signature must depend on order id")
	}
	if len(first) != 128 {
		t.Errorf("expected 128 hex chars for sha512, got %d", len(first))
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10000.00", 1000000},
		{"0.50", 50},
		{"", 0},
	}
	for _, tc := range cases {
		got, err := minorUnits(tc.in)
		if err != nil {
			t.Errorf("minorUnits(%q) returned error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("minorUnits(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := minorUnits("abc"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestSignedNotificationHelper(t *testing.T) {
	body := signedNotification(t, map[string]string{
		"transaction_status": "pending",
		"status_code":        "201",
		"order_id":           fmt.Sprintf("ord-%d", 3),
		"gross_amount":       "100.00",
	})
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if n.SignatureKey == "" {
		t.Fatal("expected signature key to be set")
	}
}
