package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"
	webhookProcessor "crowdfund-server/internal/webhooks/processor"

	"github.com/gin-gonic/gin"
)

type stubGateway struct {
	event gateway.WebhookEvent
	err   error
}

func (s *stubGateway) Name() string { return "stripe" }
func (s *stubGateway) Charge(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	return gateway.PaymentResponse{}, gateway.ErrNotSupported
}
func (s *stubGateway) SavePaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	return gateway.PaymentResponse{}, gateway.ErrNotSupported
}
func (s *stubGateway) ChargeStoredPaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	return gateway.PaymentResponse{}, gateway.ErrNotSupported
}
func (s *stubGateway) Refund(ctx context.Context, transactionID string, amount int64, currency string) (gateway.RefundResponse, error) {
	return gateway.RefundResponse{}, gateway.ErrNotSupported
}
func (s *stubGateway) Verify(ctx context.Context, transactionID string) (gateway.StatusResponse, error) {
	return gateway.StatusResponse{}, gateway.ErrNotSupported
}
func (s *stubGateway) HandleWebhook(ctx context.Context, body []byte, headers http.Header) (gateway.WebhookEvent, error) {
	if s.err != nil {
		return gateway.WebhookEvent{}, s.err
	}
	return s.event, nil
}

type recordingApplier struct {
	applied []gateway.WebhookEvent
}

func (r *recordingApplier) ApplyGatewayEvent(ctx context.Context, event gateway.WebhookEvent) error {
	r.applied = append(r.applied, event)
	return nil
}

func newTestRouter(t *testing.T, stub *stubGateway, applier *recordingApplier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := gateway.NewRegistry()
	if err := registry.Register(stub); err != nil {
		t.Fatalf("failed to register stub gateway: %v", err)
	}

	logger := observability.NewLogger()
	h := New(webhookProcessor.New(registry, applier, logger), logger)

	router := gin.New()
	router.POST("/api/payments/webhook/:gateway", h.HandleGatewayWebhook)
	return router
}

func postWebhook(router *gin.Engine, gatewayName, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/payments/webhook/%s", gatewayName), strings.NewReader(body))
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestWebhookAppliedAndAcknowledged(t *testing.T) {
	applier := &recordingApplier{}
	stub := &stubGateway{event: gateway.WebhookEvent{
		Type:    gateway.EventTypePayment,
		Status:  gateway.EventStatusSuccess,
		OrderID: "ctb-1",
		Gateway: "stripe",
	}}
	router := newTestRouter(t, stub, applier)

	recorder := postWebhook(router, "stripe", `{"id":"evt_1"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if len(applier.applied) != 1 || applier.applied[0].OrderID != "ctb-1" {
		t.Error("expected the mapped event to reach the lifecycle engine")
	}
}

func TestWebhookInvalidSignatureRejectedWithoutSideEffects(t *testing.T) {
	applier := &recordingApplier{}
	stub := &stubGateway{err: gateway.ErrInvalidSignature}
	router := newTestRouter(t, stub, applier)

	recorder := postWebhook(router, "stripe", `{"id":"evt_1"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if len(applier.applied) != 0 {
		t.Error("a rejected delivery must produce no side effects")
	}
}

func TestWebhookUnknownGateway(t *testing.T) {
	applier := &recordingApplier{}
	router := newTestRouter(t, &stubGateway{}, applier)

	recorder := postWebhook(router, "square", `{"id":"evt_1"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if len(applier.applied) != 0 {
		t.Error("unknown gateways must not reach the lifecycle engine")
	}
}
