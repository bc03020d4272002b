package handler

import (
	"net/http"

	"crowdfund-server/internal/apierrors"
	"crowdfund-server/internal/contributions/processor"
	"crowdfund-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor *processor.Processor
	logger    *observability.Logger
}

func New(processor *processor.Processor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// CreateContributionRequest represents the HTTP request for starting a checkout
type CreateContributionRequest struct {
	CampaignID     string  `json:"campaign_id" binding:"required,uuid"`
	ContributorID  string  `json:"contributor_id" binding:"required,uuid"`
	Kind           string  `json:"kind" binding:"required,oneof=donation pledge"`
	RewardID       *string `json:"reward_id,omitempty" binding:"omitempty,uuid"`
	Amount         int64   `json:"amount" binding:"required,gt=0"`
	BonusAmount    int64   `json:"bonus_amount" binding:"gte=0"`
	ShippingAmount int64   `json:"shipping_amount" binding:"gte=0"`
	CoverFees      bool    `json:"cover_fees"`
	Gateway        string  `json:"gateway" binding:"required,oneof=stripe paypal midtrans"`
	PaymentMethod  string  `json:"payment_method"`
	SuccessURL     string  `json:"success_url" binding:"omitempty,url"`
	CancelURL      string  `json:"cancel_url" binding:"omitempty,url"`
}

// RetryPaymentRequest represents the HTTP request for retrying a failed payment
type RetryPaymentRequest struct {
	SuccessURL string `json:"success_url" binding:"omitempty,url"`
	CancelURL  string `json:"cancel_url" binding:"omitempty,url"`
}

// RefundRequest represents the HTTP request for refunding a contribution
type RefundRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// HandleCreateContribution starts a checkout for a new contribution
func (h *Handler) HandleCreateContribution(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationError(c, err)
		return
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		apierrors.BadRequest(c, "INVALID_ID", "campaign_id is not a valid UUID")
		return
	}
	contributorID, err := uuid.Parse(req.ContributorID)
	if err != nil {
		apierrors.BadRequest(c, "INVALID_ID", "contributor_id is not a valid UUID")
		return
	}
	var rewardID *uuid.UUID
	if req.RewardID != nil {
		id, err := uuid.Parse(*req.RewardID)
		if err != nil {
			apierrors.BadRequest(c, "INVALID_ID", "reward_id is not a valid UUID")
			return
		}
		rewardID = &id
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: campaignID.String()},
		observability.Field{Key: "gateway", Value: req.Gateway},
	)

	result, err := h.processor.CreateContribution(ctx, processor.CreateContributionParams{
		CampaignID:     campaignID,
		ContributorID:  contributorID,
		Kind:           req.Kind,
		RewardID:       rewardID,
		Amount:         req.Amount,
		BonusAmount:    req.BonusAmount,
		ShippingAmount: req.ShippingAmount,
		CoverFees:      req.CoverFees,
		Gateway:        req.Gateway,
		PaymentMethod:  req.PaymentMethod,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkoutResponse(result))
}

// HandleGetContribution returns a single contribution
func (h *Handler) HandleGetContribution(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}

	contribution, err := h.processor.GetContribution(ctx, id)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contribution)
}

// HandleGetContributionStatus returns the public status view for a
// contribution's uid, used by return-from-redirect pages.
func (h *Handler) HandleGetContributionStatus(c *gin.Context) {
	ctx := c.Request.Context()

	uid := c.Param("uid")
	if uid == "" {
		apierrors.BadRequest(c, "INVALID_ID", "uid is required")
		return
	}

	status, err := h.processor.GetContributionStatusByUID(ctx, uid)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// HandleCancelContribution cancels a contribution, queueing the cancellation
// when a payment is still in flight.
func (h *Handler) HandleCancelContribution(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	contribution, err := h.processor.Cancel(ctx, id, actor)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contribution)
}

// HandleMarkDelivered marks a backed pledge's reward as delivered
func (h *Handler) HandleMarkDelivered(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	contribution, err := h.processor.MarkDelivered(ctx, id, actor)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contribution)
}

// HandleRetryPayment restarts checkout for a failed contribution
func (h *Handler) HandleRetryPayment(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req RetryPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.ValidationError(c, err)
			return
		}
	}

	result, err := h.processor.RetryFailedPayment(ctx, id, actor, req.SuccessURL, req.CancelURL)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse(result))
}

// HandleRefundContribution asks the gateway to refund part or all of a
// contribution's settled payment.
func (h *Handler) HandleRefundContribution(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationError(c, err)
		return
	}

	refund, err := h.processor.Refund(ctx, id, req.Amount)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"refund_id": refund.RefundID,
		"amount":    refund.Amount,
	})
}

// HandleTrashContribution soft-deletes a contribution
func (h *Handler) HandleTrashContribution(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	contribution, err := h.processor.Trash(ctx, id, actor)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contribution)
}

// HandleRestoreContribution restores a trashed contribution
func (h *Handler) HandleRestoreContribution(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	contribution, err := h.processor.Restore(ctx, id, actor)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contribution)
}

// HandlePurgeContribution permanently deletes a trashed contribution
func (h *Handler) HandlePurgeContribution(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.processor.Purge(ctx, id); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func checkoutResponse(result processor.CheckoutResult) gin.H {
	resp := gin.H{
		"contribution": result.Contribution,
		"is_redirect":  result.IsRedirect,
	}
	if result.IsRedirect {
		resp["redirect_url"] = result.RedirectURL
	}
	if len(result.ClientData) > 0 {
		resp["client_data"] = result.ClientData
	}
	return resp
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_ID", "id is not a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func actorID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get("User-ID")
	if !ok {
		apierrors.Unauthorized(c, "user is not authenticated")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw.(string))
	if err != nil {
		apierrors.Unauthorized(c, "user id is invalid")
		return uuid.Nil, false
	}
	return id, true
}
