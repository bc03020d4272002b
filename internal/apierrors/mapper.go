package apierrors

import (
	"errors"

	campaignProcessor "crowdfund-server/internal/campaign/processor"
	contributionProcessor "crowdfund-server/internal/contributions/processor"
	"crowdfund-server/internal/payments/gateway"
	"crowdfund-server/internal/store"

	"github.com/gin-gonic/gin"
)

// RespondWithError converts domain errors to sanitized JSON responses.
// Processors log the detailed error before returning it, so this only adds
// the correlation entry and picks the status code.
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		NotFound(c, "Resource not found")

	case errors.Is(err, store.ErrVersionConflict):
		Conflict(c, "VERSION_CONFLICT", "The resource was modified concurrently. Please retry.")

	case errors.Is(err, campaignProcessor.ErrInvalidStatusChange):
		Conflict(c, "INVALID_STATUS_CHANGE", "The campaign cannot move to the requested status")

	case errors.Is(err, contributionProcessor.ErrInvalidTransition):
		Conflict(c, "INVALID_TRANSITION", "The contribution cannot move to the requested state")

	case errors.Is(err, contributionProcessor.ErrCampaignNotAcceptingContributions):
		Conflict(c, "CAMPAIGN_CLOSED", "The campaign is not accepting contributions")

	case errors.Is(err, contributionProcessor.ErrRefundExceedsAmount):
		BadRequest(c, "REFUND_EXCEEDS_AMOUNT", "Refund amount exceeds the remaining refundable amount")

	case errors.Is(err, contributionProcessor.ErrNotTrashed):
		Conflict(c, "NOT_TRASHED", "The contribution must be trashed before it can be purged")

	case errors.Is(err, gateway.ErrInvalidSignature):
		BadRequest(c, "INVALID_SIGNATURE", "Webhook signature verification failed")

	case errors.Is(err, gateway.ErrCardDeclined):
		PaymentRequired(c, "CARD_DECLINED", "The payment was declined by the card issuer")

	case errors.Is(err, gateway.ErrMissingStoredMethod):
		BadRequest(c, "MISSING_PAYMENT_METHOD", "No stored payment method is available for this contributor")

	case errors.Is(err, gateway.ErrNotSupported):
		BadRequest(c, "UNSUPPORTED_GATEWAY", "The requested payment gateway or operation is not supported")

	case errors.Is(err, gateway.ErrGatewayUnavailable):
		ServiceUnavailable(c, "GATEWAY_UNAVAILABLE", "The payment gateway is temporarily unavailable", err)

	default:
		InternalError(c, err)
	}
}
