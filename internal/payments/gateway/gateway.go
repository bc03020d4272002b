package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrInvalidSignature means the webhook payload failed signature
	// verification. Nothing in the payload may be trusted or acted on.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrCardDeclined is a definitive processor rejection. Never retried.
	ErrCardDeclined = errors.New("card declined")

	// ErrMissingStoredMethod means a stored payment method reference could
	// not be resolved at the gateway.
	ErrMissingStoredMethod = errors.New("stored payment method not found")

	// ErrNotSupported means the gateway does not implement the operation
	// (e.g. off-session charges on a redirect-only gateway).
	ErrNotSupported = errors.New("operation not supported by gateway")

	// ErrGatewayUnavailable is a transient transport-level failure. Safe to
	// retry with backoff.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// EventType classifies a canonical webhook event.
type EventType string

const (
	EventTypePayment EventType = "payment"
	EventTypeRefund  EventType = "refund"
	EventTypeSetup   EventType = "setup"
	EventTypeUnknown EventType = "unknown"
)

// EventStatus is the gateway-agnostic outcome carried by a webhook event.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusSuccess   EventStatus = "success"
	EventStatusFailed    EventStatus = "failed"
	EventStatusCancelled EventStatus = "cancelled"
)

// MetaRequiresVerification marks events whose provider status is ambiguous
// (e.g. a completed checkout session whose charge has not settled). The
// ingestion layer resolves these with Verify before applying them.
const MetaRequiresVerification = "requires_verification"

// WebhookEvent is the canonical, gateway-agnostic representation of an
// inbound provider notification. It is created fresh per delivery and never
// persisted; only its effect on a Contribution is.
type WebhookEvent struct {
	Type          EventType
	Status        EventStatus
	OrderID       string
	TransactionID string
	// Amount is in minor units. For refund events it is the cumulative
	// refunded total, never a per-refund delta, so redelivered notifications
	// apply idempotently. Adapters translate provider fields accordingly.
	Amount int64
	Fee    int64 // minor units
	Currency      string
	Metadata      map[string]string
	Gateway       string
	// Raw is the provider payload, retained for audit and support diagnosis
	// only. Downstream code must never parse it.
	Raw json.RawMessage
}

// PaymentPayload carries everything an adapter needs to initiate a charge or
// a save-method flow. Built by the checkout use case.
type PaymentPayload struct {
	OrderID        string
	Amount         int64 // minor units, gross (recovery fee already added)
	Currency       string
	Description    string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	StoredMethodID string // gateway reference for off-session charges
	CustomerRef    string // gateway customer reference, when one exists
	Metadata       map[string]string
}

// PaymentResponse is the uniform result of charge-side operations. Redirect
// gateways return a URL the payer must be sent to; completion then arrives
// via webhook. Synchronous gateways return a settled transaction id directly.
type PaymentResponse struct {
	IsRedirect    bool
	RedirectURL   string
	TransactionID string
	Raw           json.RawMessage
}

// RefundResponse is the uniform result of a refund call.
type RefundResponse struct {
	Success  bool
	RefundID string
	Amount   int64 // minor units actually refunded
}

// StatusResponse is a synchronous status re-check, used to reconcile
// ambiguous webhook events against the gateway's authoritative state.
type StatusResponse struct {
	Status   EventStatus
	Amount   int64
	Currency string
}

// Gateway is the contract every payment gateway adapter implements. The
// command path (Charge, Refund) and the observation path (HandleWebhook,
// Verify) are deliberately separate so the contribution engine can treat
// redirect-based, form-based and instant gateways identically.
type Gateway interface {
	// Name returns the registry key for this gateway.
	Name() string

	// Charge initiates a one-time charge.
	Charge(ctx context.Context, payload PaymentPayload) (PaymentResponse, error)

	// SavePaymentMethod begins a flow to store a reusable payment method
	// without an immediate charge.
	SavePaymentMethod(ctx context.Context, payload PaymentPayload) (PaymentResponse, error)

	// ChargeStoredPaymentMethod charges off-session using a previously saved
	// method. Fails with ErrMissingStoredMethod if the reference cannot be
	// resolved and ErrCardDeclined on processor rejection.
	ChargeStoredPaymentMethod(ctx context.Context, payload PaymentPayload) (PaymentResponse, error)

	// Refund refunds a transaction, partially when amount > 0 and in full
	// otherwise.
	Refund(ctx context.Context, transactionID string, amount int64, currency string) (RefundResponse, error)

	// Verify re-checks a transaction's status synchronously.
	Verify(ctx context.Context, transactionID string) (StatusResponse, error)

	// HandleWebhook validates the provider signature (before trusting any
	// payload data) and maps the provider event onto the canonical
	// WebhookEvent. Returns ErrInvalidSignature on mismatch.
	HandleWebhook(ctx context.Context, body []byte, headers http.Header) (WebhookEvent, error)
}
