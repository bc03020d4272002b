package stripegw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
	"github.com/stripe/stripe-go/v79/setupintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

const gatewayName = "stripe"

// Gateway is the Stripe payment gateway adapter
type Gateway struct {
	webhookSecret string
	logger        *observability.Logger
}

func New(apiKey, webhookSecret string, logger *observability.Logger) *Gateway {
	stripe.Key = apiKey
	return &Gateway{
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (g *Gateway) Name() string {
	return gatewayName
}

// Charge starts a payment for an order. When a success URL is provided the
// payment runs through Stripe Checkout and the caller redirects the
// contributor; otherwise a PaymentIntent is created and its client secret is
// returned for on-page confirmation.
func (g *Gateway) Charge(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "order_id", Value: payload.OrderID})

	if payload.SuccessURL != "" {
		return g.chargeViaCheckout(ctx, payload)
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(payload.Amount),
		Currency:     stripe.String(strings.ToLower(payload.Currency)),
		Description:  stripe.String(payload.Description),
		ReceiptEmail: stripe.String(payload.CustomerEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", payload.OrderID)
	for key, value := range payload.Metadata {
		params.AddMetadata(key, value)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to create payment intent", err)
		return gateway.PaymentResponse{}, mapStripeError(err)
	}

	raw, _ := json.Marshal(map[string]string{"client_secret": pi.ClientSecret})
	return gateway.PaymentResponse{
		TransactionID: pi.ID,
		Raw:           raw,
	}, nil
}

func (g *Gateway) chargeViaCheckout(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(payload.SuccessURL),
		CancelURL:         stripe.String(payload.CancelURL),
		CustomerEmail:     stripe.String(payload.CustomerEmail),
		ClientReferenceID: stripe.String(payload.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(payload.Currency)),
					UnitAmount: stripe.Int64(payload.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(payload.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": payload.OrderID},
		},
	}
	params.AddMetadata("order_id", payload.OrderID)

	s, err := session.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to create checkout session", err)
		return gateway.PaymentResponse{}, mapStripeError(err)
	}

	return gateway.PaymentResponse{
		IsRedirect:    true,
		RedirectURL:   s.URL,
		TransactionID: s.ID,
	}, nil
}

// SavePaymentMethod creates a SetupIntent so a pledge's card can be charged
// later without the contributor present.
func (g *Gateway) SavePaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "order_id", Value: payload.OrderID})

	params := &stripe.SetupIntentParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if payload.CustomerRef != "" {
		params.Customer = stripe.String(payload.CustomerRef)
	}
	params.AddMetadata("order_id", payload.OrderID)

	si, err := setupintent.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to create setup intent", err)
		return gateway.PaymentResponse{}, mapStripeError(err)
	}

	raw, _ := json.Marshal(map[string]string{"client_secret": si.ClientSecret})
	return gateway.PaymentResponse{
		TransactionID: si.ID,
		Raw:           raw,
	}, nil
}

// ChargeStoredPaymentMethod charges a previously saved card off-session
func (g *Gateway) ChargeStoredPaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "order_id", Value: payload.OrderID})

	if payload.StoredMethodID == "" {
		return gateway.PaymentResponse{}, gateway.ErrMissingStoredMethod
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(payload.Amount),
		Currency:      stripe.String(strings.ToLower(payload.Currency)),
		Description:   stripe.String(payload.Description),
		PaymentMethod: stripe.String(payload.StoredMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if payload.CustomerRef != "" {
		params.Customer = stripe.String(payload.CustomerRef)
	}
	params.AddMetadata("order_id", payload.OrderID)

	pi, err := paymentintent.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to charge stored payment method", err)
		return gateway.PaymentResponse{}, mapStripeError(err)
	}

	return gateway.PaymentResponse{
		TransactionID: pi.ID,
	}, nil
}

// Refund refunds a captured payment, partially when amount is below the
// original charge.
func (g *Gateway) Refund(ctx context.Context, transactionID string, amount int64, currency string) (gateway.RefundResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "transaction_id", Value: transactionID})

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(amount),
	}

	r, err := refund.New(params)
	if err != nil {
		g.logger.Error(ctx, "failed to create refund", err)
		return gateway.RefundResponse{}, mapStripeError(err)
	}

	return gateway.RefundResponse{
		Success:  r.Status != stripe.RefundStatusFailed,
		RefundID: r.ID,
		Amount:   r.Amount,
	}, nil
}

// Verify queries Stripe for the authoritative state of a transaction
func (g *Gateway) Verify(ctx context.Context, transactionID string) (gateway.StatusResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "transaction_id", Value: transactionID})

	if strings.HasPrefix(transactionID, "cs_") {
		s, err := session.Get(transactionID, nil)
		if err != nil {
			g.logger.Error(ctx, "failed to get checkout session", err)
			return gateway.StatusResponse{}, mapStripeError(err)
		}
		status := gateway.EventStatusPending
		if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			status = gateway.EventStatusSuccess
		}
		return gateway.StatusResponse{
			Status:   status,
			Amount:   s.AmountTotal,
			Currency: strings.ToUpper(string(s.Currency)),
		}, nil
	}

	pi, err := paymentintent.Get(transactionID, nil)
	if err != nil {
		g.logger.Error(ctx, "failed to get payment intent", err)
		return gateway.StatusResponse{}, mapStripeError(err)
	}

	return gateway.StatusResponse{
		Status:   mapIntentStatus(pi.Status),
		Amount:   pi.Amount,
		Currency: strings.ToUpper(string(pi.Currency)),
	}, nil
}

// HandleWebhook verifies the Stripe-Signature header and maps the event to
// the gateway-neutral shape. Unknown event types map to EventTypeUnknown so
// ingestion can acknowledge and drop them.
func (g *Gateway) HandleWebhook(ctx context.Context, body []byte, headers http.Header) (gateway.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(body, headers.Get("Stripe-Signature"), g.webhookSecret)
	if err != nil {
		g.logger.Error(ctx, "stripe webhook signature verification failed", err)
		return gateway.WebhookEvent{}, fmt.Errorf("%w: %v", gateway.ErrInvalidSignature, err)
	}

	mapped, err := mapEvent(event)
	if err != nil {
		g.logger.Error(ctx, "failed to map stripe webhook event", err)
		return gateway.WebhookEvent{}, err
	}
	return mapped, nil
}

func mapEvent(event stripe.Event) (gateway.WebhookEvent, error) {
	out := gateway.WebhookEvent{
		Type:     gateway.EventTypeUnknown,
		Gateway:  gatewayName,
		Metadata: map[string]string{},
		Raw:      event.Data.Raw,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed",
		"payment_intent.processing", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("failed to parse payment intent event: %w", err)
		}
		out.Type = gateway.EventTypePayment
		out.OrderID = pi.Metadata["order_id"]
		out.TransactionID = pi.ID
		out.Amount = pi.Amount
		out.Currency = strings.ToUpper(string(pi.Currency))
		switch event.Type {
		case "payment_intent.succeeded":
			out.Status = gateway.EventStatusSuccess
			out.Amount = pi.AmountReceived
		case "payment_intent.payment_failed":
			out.Status = gateway.EventStatusFailed
		case "payment_intent.processing":
			out.Status = gateway.EventStatusPending
		case "payment_intent.canceled":
			out.Status = gateway.EventStatusCancelled
		}

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("failed to parse charge event: %w", err)
		}
		out.Type = gateway.EventTypeRefund
		out.Status = gateway.EventStatusSuccess
		out.OrderID = ch.Metadata["order_id"]
		// amount_refunded is the cumulative total across all refunds on the
		// charge, matching the refund-event contract.
		out.Amount = ch.AmountRefunded
		out.Currency = strings.ToUpper(string(ch.Currency))
		if ch.PaymentIntent != nil {
			out.TransactionID = ch.PaymentIntent.ID
		}

	case "setup_intent.succeeded":
		var si stripe.SetupIntent
		if err := json.Unmarshal(event.Data.Raw, &si); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("failed to parse setup intent event: %w", err)
		}
		out.Type = gateway.EventTypeSetup
		out.Status = gateway.EventStatusSuccess
		out.OrderID = si.Metadata["order_id"]
		out.TransactionID = si.ID
		if si.PaymentMethod != nil {
			out.Metadata["payment_method"] = si.PaymentMethod.ID
		}

	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("failed to parse checkout session event: %w", err)
		}
		out.Type = gateway.EventTypePayment
		out.OrderID = s.ClientReferenceID
		if out.OrderID == "" {
			out.OrderID = s.Metadata["order_id"]
		}
		out.TransactionID = s.ID
		if s.PaymentIntent != nil {
			out.TransactionID = s.PaymentIntent.ID
		}
		out.Amount = s.AmountTotal
		out.Currency = strings.ToUpper(string(s.Currency))
		// A completed session can still be unpaid (async payment methods),
		// so ingestion must confirm with Verify before applying.
		if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			out.Status = gateway.EventStatusSuccess
		} else {
			out.Status = gateway.EventStatusPending
			out.Metadata[gateway.MetaRequiresVerification] = "true"
		}
	}

	return out, nil
}

func mapIntentStatus(status stripe.PaymentIntentStatus) gateway.EventStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return gateway.EventStatusSuccess
	case stripe.PaymentIntentStatusCanceled:
		return gateway.EventStatusCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return gateway.EventStatusFailed
	default:
		return gateway.EventStatusPending
	}
}

// mapStripeError converts Stripe API errors to gateway sentinels so callers
// can distinguish declines from outages.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.Code == stripe.ErrorCodeCardDeclined,
			stripeErr.Code == stripe.ErrorCodeExpiredCard,
			stripeErr.Code == stripe.ErrorCodeIncorrectCVC:
			return fmt.Errorf("%w: %s", gateway.ErrCardDeclined, stripeErr.Code)
		case stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", gateway.ErrGatewayUnavailable, err)
		}
	}
	return err
}
