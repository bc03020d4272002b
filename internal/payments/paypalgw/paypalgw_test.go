package paypalgw

import (
	"encoding/json"
	"testing"

	"crowdfund-server/internal/payments/gateway"
)

func notification(eventType, resource string) webhookNotification {
	return webhookNotification{
		ID:        "WH-1",
		EventType: eventType,
		Resource:  json.RawMessage(resource),
	}
}

func TestMapNotificationCaptureCompleted(t *testing.T) {
	event, err := mapNotification(notification("PAYMENT.CAPTURE.COMPLETED",
		`{"id":"CAP-1","status":"COMPLETED","custom_id":"ord-1","amount":{"currency_code":"USD","value":"105.26"}}`))
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
	if event.TransactionID != "CAP-1" {
		t.Errorf("expected transaction id CAP-1, got %q", event.TransactionID)
	}
	if event.Amount != 10526 {
		t.Errorf("expected amount 10526, got %d", event.Amount)
	}
	if event.Currency != "USD" {
		t.Errorf("expected currency USD, got %q", event.Currency)
	}
}

func TestMapNotificationCaptureDenied(t *testing.T) {
	event, err := mapNotification(notification("PAYMENT.CAPTURE.DENIED",
		`{"id":"CAP-2","status":"DENIED","custom_id":"ord-2","amount":{"currency_code":"USD","value":"50.00"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Status != gateway.EventStatusFailed {
		t.Errorf("expected failed status, got %s", event.Status)
	}
}

func TestMapNotificationCaptureRefunded(t *testing.T) {
	// amount is the individual refund; the breakdown carries the running
	// total across all refunds on the capture, which is what we report
	event, err := mapNotification(notification("PAYMENT.CAPTURE.REFUNDED",
		`{"id":"REF-1","status":"COMPLETED","custom_id":"ord-3","amount":{"currency_code":"USD","value":"25.00"},"seller_payable_breakdown":{"total_refunded_amount":{"currency_code":"USD","value":"40.00"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != gateway.EventTypeRefund {
		t.Errorf("expected refund event, got %s", event.Type)
	}
	if event.Amount != 4000 {
		t.Errorf("expected cumulative refunded amount 4000, got %d", event.Amount)
	}
}

func TestMapNotificationCaptureRefundedWithoutBreakdown(t *testing.T) {
	event, err := mapNotification(notification("PAYMENT.CAPTURE.REFUNDED",
		`{"id":"REF-2","status":"COMPLETED","custom_id":"ord-5","amount":{"currency_code":"USD","value":"25.00"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Amount != 2500 {
		t.Errorf("expected fallback to refund amount 2500, got %d", event.Amount)
	}
}

func TestMapNotificationOrderApprovedRequiresVerification(t *testing.T) {
	event, err := mapNotification(notification("CHECKOUT.ORDER.APPROVED",
		`{"id":"ORD-9","status":"APPROVED","purchase_units":[{"custom_id":"ord-4","amount":{"currency_code":"USD","value":"75.00"}}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Status != gateway.EventStatusPending {
		t.Errorf("expected pending status, got %s", event.Status)
	}
	if event.Metadata[gateway.MetaRequiresVerification] != "true" {
		t.Error("expected approved order to require verification")
	}
	if event.OrderID != "ord-4" {
		t.Errorf("expected order id ord-4, got %q", event.OrderID)
	}
	if event.TransactionID != "ORD-9" {
		t.Errorf("expected transaction id ORD-9, got %q", event.TransactionID)
	}
}

func TestMapNotificationUnknownEventType(t *testing.T) {
	event, err := mapNotification(notification("BILLING.SUBSCRIPTION.CREATED", `{"id":"sub_1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != gateway.EventTypeUnknown {
		t.Errorf("expected unknown event type, got %s", event.Type)
	}
}

func TestMapNotificationMalformedResource(t *testing.T) {
	_, err := mapNotification(notification("PAYMENT.CAPTURE.COMPLETED", `{"amount":{"value":"not-a-number"}}`))
	if err == nil {
		t.Fatal("expected error for malformed amount")
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"105.26", 10526},
		{"0.01", 1},
		{"100", 10000},
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
}

func TestMapOrderStatus(t *testing.T) {
	if mapOrderStatus("COMPLETED") != gateway.EventStatusSuccess {
		t.Error("expected COMPLETED to map to success")
	}
	if mapOrderStatus("VOIDED") != gateway.EventStatusCancelled {
		t.Error("expected VOIDED to map to cancelled")
	}
	if mapOrderStatus("CREATED") != gateway.EventStatusPending {
		t.Error("expected CREATED to map to pending")
	}
}
