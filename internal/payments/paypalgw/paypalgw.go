package paypalgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crowdfund-server/internal/money"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

const gatewayName = "paypal"

// Gateway is the PayPal payment gateway adapter
type Gateway struct {
	client    *paypal.Client
	webhookID string
	logger    *observability.Logger
}

func New(clientID, secret, webhookID string, live bool, logger *observability.Logger) (*Gateway, error) {
	apiBase := paypal.APIBaseSandBox
	if live {
		apiBase = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal client: %w", err)
	}

	return &Gateway{
		client:    client,
		webhookID: webhookID,
		logger:    logger,
	}, nil
}

func (g *Gateway) Name() string {
	return gatewayName
}

// Charge creates a CAPTURE-intent order and returns the approval URL the
// contributor must be redirected to.
func (g *Gateway) Charge(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "order_id", Value: payload.OrderID})

	purchaseUnits := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: payload.OrderID,
			CustomID:    payload.OrderID,
			Description: payload.Description,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: strings.ToUpper(payload.Currency),
				Value:    money.ToDisplay(payload.Amount).StringFixed(2),
			},
		},
	}

	applicationContext := &paypal.ApplicationContext{
		ReturnURL: payload.SuccessURL,
		CancelURL: payload.CancelURL,
	}

	order, err := g.client.CreateOrder(ctx, "CAPTURE", purchaseUnits, nil, applicationContext)
	if err != nil {
		g.logger.Error(ctx, "failed to create paypal order", err)
		return gateway.PaymentResponse{}, mapPayPalError(err)
	}

	approvalURL := approvalURL(order)
	if approvalURL == "" {
		return gateway.PaymentResponse{}, fmt.Errorf("paypal order %s has no approval link", order.ID)
	}

	return gateway.PaymentResponse{
		IsRedirect:    true,
		RedirectURL:   approvalURL,
		TransactionID: order.ID,
	}, nil
}

// SavePaymentMethod is not offered for PayPal; pledges through PayPal are
// charged at creation like donations.
func (g *Gateway) SavePaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	return gateway.PaymentResponse{}, fmt.Errorf("%w: paypal does not support stored payment methods", gateway.ErrNotSupported)
}

func (g *Gateway) ChargeStoredPaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	return gateway.PaymentResponse{}, fmt.Errorf("%w: paypal does not support stored payment methods", gateway.ErrNotSupported)
}

// Refund refunds a captured payment by capture id
func (g *Gateway) Refund(ctx context.Context, transactionID string, amount int64, currency string) (gateway.RefundResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "transaction_id", Value: transactionID})

	refund, err := g.client.RefundCapture(ctx, transactionID, paypal.RefundCaptureRequest{
		Amount: &paypal.Money{
			Currency: strings.ToUpper(currency),
			Value:    money.ToDisplay(amount).StringFixed(2),
		},
	})
	if err != nil {
		g.logger.Error(ctx, "failed to refund paypal capture", err)
		return gateway.RefundResponse{}, mapPayPalError(err)
	}

	return gateway.RefundResponse{
		Success:  refund.Status == "COMPLETED" || refund.Status == "PENDING",
		RefundID: refund.ID,
		Amount:   amount,
	}, nil
}

// Verify queries the order's authoritative state. An order still sitting in
// APPROVED is captured here, so verification after CHECKOUT.ORDER.APPROVED
// settles the payment.
func (g *Gateway) Verify(ctx context.Context, transactionID string) (gateway.StatusResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "transaction_id", Value: transactionID})

	order, err := g.client.GetOrder(ctx, transactionID)
	if err != nil {
		g.logger.Error(ctx, "failed to get paypal order", err)
		return gateway.StatusResponse{}, mapPayPalError(err)
	}

	if order.Status == "APPROVED" {
		capture, err := g.client.CaptureOrder(ctx, transactionID, paypal.CaptureOrderRequest{})
		if err != nil {
			g.logger.Error(ctx, "failed to capture approved paypal order", err)
			return gateway.StatusResponse{}, mapPayPalError(err)
		}
		return gateway.StatusResponse{
			Status:   mapOrderStatus(capture.Status),
			Amount:   orderAmount(order),
			Currency: orderCurrency(order),
		}, nil
	}

	return gateway.StatusResponse{
		Status:   mapOrderStatus(order.Status),
		Amount:   orderAmount(order),
		Currency: orderCurrency(order),
	}, nil
}

// HandleWebhook verifies the notification against the configured webhook id
// and maps it to the gateway-neutral shape.
func (g *Gateway) HandleWebhook(ctx context.Context, body []byte, headers http.Header) (gateway.WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return gateway.WebhookEvent{}, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header = headers

	verification, err := g.client.VerifyWebhookSignature(ctx, req, g.webhookID)
	if err != nil {
		g.logger.Error(ctx, "paypal webhook verification call failed", err)
		return gateway.WebhookEvent{}, fmt.Errorf("%w: %v", gateway.ErrInvalidSignature, err)
	}
	if verification.VerificationStatus != "SUCCESS" {
		return gateway.WebhookEvent{}, fmt.Errorf("%w: verification status %s",
			gateway.ErrInvalidSignature, verification.VerificationStatus)
	}

	var notification webhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return gateway.WebhookEvent{}, fmt.Errorf("failed to parse paypal notification: %w", err)
	}

	event, err := mapNotification(notification)
	if err != nil {
		g.logger.Error(ctx, "failed to map paypal notification", err)
		return gateway.WebhookEvent{}, err
	}
	return event, nil
}

type webhookNotification struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type amountValue struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type captureResource struct {
	ID       string      `json:"id"`
	Status   string      `json:"status"`
	CustomID string      `json:"custom_id"`
	Amount   amountValue `json:"amount"`
}

type refundResource struct {
	ID                     string      `json:"id"`
	Status                 string      `json:"status"`
	CustomID               string      `json:"custom_id"`
	Amount                 amountValue `json:"amount"`
	SellerPayableBreakdown struct {
		TotalRefundedAmount amountValue `json:"total_refunded_amount"`
	} `json:"seller_payable_breakdown"`
}

type orderResource struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string      `json:"custom_id"`
		Amount   amountValue `json:"amount"`
	} `json:"purchase_units"`
}

func mapNotification(n webhookNotification) (gateway.WebhookEvent, error) {
	out := gateway.WebhookEvent{
		Type:     gateway.EventTypeUnknown,
		Gateway:  gatewayName,
		Metadata: map[string]string{},
		Raw:      n.Resource,
	}

	switch n.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.PENDING":
		var capture captureResource
		if err := json.Unmarshal(n.Resource, &capture); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("failed to parse capture resource: %w", err)
		}
		out.Type = gateway.EventTypePayment
		out.OrderID = capture.CustomID
		out.TransactionID = capture.ID
		out.Currency = capture.Amount.CurrencyCode
		amount, err := minorUnits(capture.Amount.Value)
		if err != nil {
			return gateway.WebhookEvent{}, err
		}
		out.Amount = amount
		switch n.EventType {
		case "PAYMENT.CAPTURE.COMPLETED":
			out.Status = gateway.EventStatusSuccess
		case "PAYMENT.CAPTURE.DENIED":
			out.Status = gateway.EventStatusFailed
		case "PAYMENT.CAPTURE.PENDING":
			out.Status = gateway.EventStatusPending
		}

	case "PAYMENT.CAPTURE.REFUNDED":
		var refund refundResource
		if err := json.Unmarshal(n.Resource, &refund); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("failed to parse refund resource: %w", err)
		}
		out.Type = gateway.EventTypeRefund
		out.Status = gateway.EventStatusSuccess
		out.OrderID = refund.CustomID
		out.TransactionID = refund.ID
		out.Currency = refund.Amount.CurrencyCode
		// The resource's amount is this refund alone; the breakdown carries
		// the cumulative total the refund-event contract requires.
		cumulative := refund.SellerPayableBreakdown.TotalRefundedAmount.Value
		if cumulative == "" {
			cumulative = refund.Amount.Value
		}
		amount, err := minorUnits(cumulative)
		if err != nil {
			return gateway.WebhookEvent{}, err
		}
		out.Amount = amount

	case "CHECKOUT.ORDER.APPROVED":
		var order orderResource
		if err := json.Unmarshal(n.Resource, &order); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("failed to parse order resource: %w", err)
		}
		out.Type = gateway.EventTypePayment
		out.Status = gateway.EventStatusPending
		out.TransactionID = order.ID
		// Approval is not settlement. Ingestion verifies, which also
		// captures the approved order.
		out.Metadata[gateway.MetaRequiresVerification] = "true"
		if len(order.PurchaseUnits) > 0 {
			out.OrderID = order.PurchaseUnits[0].CustomID
			out.Currency = order.PurchaseUnits[0].Amount.CurrencyCode
			amount, err := minorUnits(order.PurchaseUnits[0].Amount.Value)
			if err != nil {
				return gateway.WebhookEvent{}, err
			}
			out.Amount = amount
		}
	}

	return out, nil
}

func minorUnits(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse paypal amount %q: %w", value, err)
	}
	return money.ToMinorUnits(d), nil
}

func mapOrderStatus(status string) gateway.EventStatus {
	switch status {
	case "COMPLETED":
		return gateway.EventStatusSuccess
	case "VOIDED":
		return gateway.EventStatusCancelled
	default:
		return gateway.EventStatusPending
	}
}

func approvalURL(order *paypal.Order) string {
	for _, link := range order.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

func orderAmount(order *paypal.Order) int64 {
	if len(order.PurchaseUnits) == 0 || order.PurchaseUnits[0].Amount == nil {
		return 0
	}
	amount, err := minorUnits(order.PurchaseUnits[0].Amount.Value)
	if err != nil {
		return 0
	}
	return amount
}

func orderCurrency(order *paypal.Order) string {
	if len(order.PurchaseUnits) == 0 || order.PurchaseUnits[0].Amount == nil {
		return ""
	}
	return order.PurchaseUnits[0].Amount.Currency
}

// mapPayPalError converts PayPal API errors to gateway sentinels
func mapPayPalError(err error) error {
	var paypalErr *paypal.ErrorResponse
	if errors.As(err, &paypalErr) && paypalErr.Response != nil &&
		paypalErr.Response.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %v", gateway.ErrGatewayUnavailable, err)
	}
	return err
}
