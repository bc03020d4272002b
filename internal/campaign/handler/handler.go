package handler

import (
	"net/http"
	"strconv"
	"time"

	"crowdfund-server/internal/apierrors"
	"crowdfund-server/internal/campaign/processor"
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

// UpdateCampaignStatusRequest represents the HTTP request for moving a
// campaign through moderation.
type UpdateCampaignStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft pending published declined completed"`
}

// UpdateCampaignDeadlineRequest represents the HTTP request for changing a
// campaign's funding deadline. A null end_date removes the deadline.
type UpdateCampaignDeadlineRequest struct {
	EndDate *time.Time `json:"end_date"`
}

// HandleGetCampaign returns a single campaign with its aggregates
func (h *Handler) HandleGetCampaign(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}

	campaign, err := h.processor.GetCampaign(ctx, id)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// HandleUpdateCampaignStatus moves a campaign through its moderation flow
func (h *Handler) HandleUpdateCampaignStatus(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req UpdateCampaignStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: id.String()},
		observability.Field{Key: "target_status", Value: req.Status},
	)

	campaign, err := h.processor.ChangeStatus(ctx, id, req.Status, actor)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// HandleUpdateCampaignDeadline sets, extends, or removes a campaign deadline
func (h *Handler) HandleUpdateCampaignDeadline(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req UpdateCampaignDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationError(c, err)
		return
	}

	campaign, err := h.processor.SetDeadline(ctx, id, req.EndDate, actor)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// HandleListCampaignActivities returns the newest activities for a campaign
func (h *Handler) HandleListCampaignActivities(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c)
	if !ok {
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	activities, err := h.processor.ListActivities(ctx, id, limit)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activities": activities})
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
