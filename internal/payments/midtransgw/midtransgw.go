package midtransgw

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"crowdfund-server/internal/money"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

const gatewayName = "midtrans"

// Gateway is the Midtrans payment gateway adapter. Charges run through Snap
// redirect pages; status checks and refunds go through the core API.
type Gateway struct {
	snapClient snap.Client
	coreClient coreapi.Client
	serverKey  string
	logger     *observability.Logger
}

func New(serverKey string, production bool, logger *observability.Logger) *Gateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	return &Gateway{
		snapClient: s,
		coreClient: c,
		serverKey:  serverKey,
		logger:     logger,
	}
}

func (g *Gateway) Name() string {
	return gatewayName
}

// Charge creates a Snap transaction and returns its redirect URL. Midtrans
// amounts are whole currency units, so minor units are scaled down here and
// back up when notifications arrive.
func (g *Gateway) Charge(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "order_id", Value: payload.OrderID})

	grossAmount := money.ToDisplay(payload.Amount).IntPart()
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  payload.OrderID,
			GrossAmt: grossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			Email: payload.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    payload.OrderID,
				Name:  payload.Description,
				Price: grossAmount,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: payload.SuccessURL,
		},
	}

	resp, err := g.snapClient.CreateTransaction(req)
	if err != nil {
		g.logger.Error(ctx, "failed to create snap transaction", err)
		return gateway.PaymentResponse{}, mapMidtransError(err)
	}

	raw, _ := json.Marshal(map[string]string{"token": resp.Token})
	return gateway.PaymentResponse{
		IsRedirect:  true,
		RedirectURL: resp.RedirectURL,
		Raw:         raw,
	}, nil
}

func (g *Gateway) SavePaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	return gateway.PaymentResponse{}, fmt.Errorf("%w: midtrans does not support stored payment methods", gateway.ErrNotSupported)
}

func (g *Gateway) ChargeStoredPaymentMethod(ctx context.Context, payload gateway.PaymentPayload) (gateway.PaymentResponse, error) {
	return gateway.PaymentResponse{}, fmt.Errorf("%w: midtrans does not support stored payment methods", gateway.ErrNotSupported)
}

// Refund refunds a settled transaction. Midtrans accepts either the order id
// or the gateway transaction id.
func (g *Gateway) Refund(ctx context.Context, transactionID string, amount int64, currency string) (gateway.RefundResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "transaction_id", Value: transactionID})

	resp, err := g.coreClient.RefundTransaction(transactionID, &coreapi.RefundReq{
		Amount: money.ToDisplay(amount).IntPart(),
		Reason: "requested by platform",
	})
	if err != nil {
		g.logger.Error(ctx, "failed to refund midtrans transaction", err)
		return gateway.RefundResponse{}, mapMidtransError(err)
	}

	return gateway.RefundResponse{
		Success:  resp.StatusCode == "200",
		RefundID: resp.RefundKey,
		Amount:   amount,
	}, nil
}

// Verify checks the authoritative transaction status with the core API
func (g *Gateway) Verify(ctx context.Context, transactionID string) (gateway.StatusResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "transaction_id", Value: transactionID})

	resp, err := g.coreClient.CheckTransaction(transactionID)
	if err != nil {
		g.logger.Error(ctx, "failed to check midtrans transaction", err)
		return gateway.StatusResponse{}, mapMidtransError(err)
	}

	amount, parseErr := minorUnits(resp.GrossAmount)
	if parseErr != nil {
		return gateway.StatusResponse{}, parseErr
	}

	status, _ := mapTransactionStatus(resp.TransactionStatus, resp.FraudStatus)
	return gateway.StatusResponse{
		Status:   status,
		Amount:   amount,
		Currency: resp.Currency,
	}, nil
}

// notification is the Midtrans HTTP notification payload
type notification struct {
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	RefundAmount      string `json:"refund_amount"`
	Currency          string `json:"currency"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// HandleWebhook authenticates the notification via its signature_key and
// maps it to the gateway-neutral shape. Midtrans has no signature header;
// the key is sha512 over order id, status code, gross amount and server key.
func (g *Gateway) HandleWebhook(ctx context.Context, body []byte, headers http.Header) (gateway.WebhookEvent, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return gateway.WebhookEvent{}, fmt.Errorf("failed to parse midtrans notification: %w", err)
	}

	expected := computeSignature(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) != 1 {
		g.logger.Error(ctx, "midtrans notification signature mismatch", gateway.ErrInvalidSignature)
		return gateway.WebhookEvent{}, fmt.Errorf("%w: signature key mismatch", gateway.ErrInvalidSignature)
	}

	status, eventType := mapTransactionStatus(n.TransactionStatus, n.FraudStatus)

	// gross_amount is always the original transaction total. Refund
	// notifications carry the refunded total in refund_amount; a
	// partial_refund mapped off gross_amount would book a full refund.
	amountField := n.GrossAmount
	if eventType == gateway.EventTypeRefund && n.RefundAmount != "" {
		amountField = n.RefundAmount
	}
	amount, err := minorUnits(amountField)
	if err != nil {
		return gateway.WebhookEvent{}, err
	}

	return gateway.WebhookEvent{
		Type:          eventType,
		Status:        status,
		OrderID:       n.OrderID,
		TransactionID: n.TransactionID,
		Amount:        amount,
		Currency:      n.Currency,
		Metadata:      map[string]string{"payment_type": n.PaymentType},
		Gateway:       gatewayName,
		Raw:           json.RawMessage(body),
	}, nil
}

func computeSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// mapTransactionStatus maps a Midtrans transaction status to the neutral
// event status and type. Refund statuses surface as refund events; everything
// else is a payment event.
func mapTransactionStatus(status, fraudStatus string) (gateway.EventStatus, gateway.EventType) {
	switch status {
	case "settlement":
		return gateway.EventStatusSuccess, gateway.EventTypePayment
	case "capture":
		if fraudStatus == "challenge" {
			return gateway.EventStatusPending, gateway.EventTypePayment
		}
		return gateway.EventStatusSuccess, gateway.EventTypePayment
	case "pending":
		return gateway.EventStatusPending, gateway.EventTypePayment
	case "deny", "failure":
		return gateway.EventStatusFailed, gateway.EventTypePayment
	case "cancel", "expire":
		return gateway.EventStatusCancelled, gateway.EventTypePayment
	case "refund", "partial_refund":
		return gateway.EventStatusSuccess, gateway.EventTypeRefund
	default:
		return gateway.EventStatusPending, gateway.EventTypeUnknown
	}
}

func minorUnits(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse midtrans amount %q: %w", value, err)
	}
	return money.ToMinorUnits(d), nil
}

// mapMidtransError converts Midtrans API errors to gateway sentinels
func mapMidtransError(err *midtrans.Error) error {
	if err == nil {
		return nil
	}
	if err.StatusCode >= http.StatusInternalServerError || err.StatusCode == 0 {
		return fmt.Errorf("%w: %v", gateway.ErrGatewayUnavailable, err)
	}
	return err
}
