package handler

import (
	"io"
	"net/http"

	"crowdfund-server/internal/apierrors"
	"crowdfund-server/internal/observability"
	webhookProcessor "crowdfund-server/internal/webhooks/processor"

	"github.com/gin-gonic/gin"
)

// Handler exposes the webhook ingestion endpoint
type Handler struct {
	processor *webhookProcessor.Processor
	logger    *observability.Logger
}

func New(processor *webhookProcessor.Processor, logger *observability.Logger) *Handler {
	return &Handler{
		processor: processor,
		logger:    logger,
	}
}

// HandleGatewayWebhook receives a raw gateway notification. The path
// parameter selects the adapter; the body and headers pass through untouched
// so signatures stay verifiable.
func (h *Handler) HandleGatewayWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierrors.BadRequest(c, "INVALID_INPUT", "failed to read request body")
		return
	}

	err = h.processor.Ingest(ctx, c.Param("gateway"), body, c.Request.Header)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}
