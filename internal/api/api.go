package api

import (
	"net/http"

	"crowdfund-server/internal/auth"
	campaignHandler "crowdfund-server/internal/campaign/handler"
	contributionHandler "crowdfund-server/internal/contributions/handler"
	"crowdfund-server/internal/ratelimit"
	webhookHandler "crowdfund-server/internal/webhooks/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router              *gin.RouterGroup
	auth                auth.Auth
	rateLimit           *ratelimit.Service
	contributionHandler contributionHandler.Handler
	campaignHandler     campaignHandler.Handler
	webhookHandler      *webhookHandler.Handler
}

func New(
	router *gin.RouterGroup,
	auth auth.Auth,
	rateLimit *ratelimit.Service,
	contributionHandler contributionHandler.Handler,
	campaignHandler campaignHandler.Handler,
	webhookHandler *webhookHandler.Handler,
) API {
	return API{
		router:              router,
		auth:                auth,
		rateLimit:           rateLimit,
		contributionHandler: contributionHandler,
		campaignHandler:     campaignHandler,
		webhookHandler:      webhookHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")

	// Gateway notifications authenticate through signatures, not bearer tokens
	apiGroup.POST("/payments/webhook/:gateway", a.webhookHandler.HandleGatewayWebhook)

	// Return-from-redirect pages poll this without a session
	apiGroup.GET("/contributions/status/:uid", a.contributionHandler.HandleGetContributionStatus)

	protectedGroup := apiGroup.Group("/protected", a.auth.HandleJWTMiddleware)
	{
		checkoutLimit := a.rateLimit.Middleware()
		protectedGroup.POST("/contributions", checkoutLimit, a.contributionHandler.HandleCreateContribution)
		protectedGroup.GET("/contributions/:id", a.contributionHandler.HandleGetContribution)
		protectedGroup.POST("/contributions/:id/cancel", a.contributionHandler.HandleCancelContribution)
		protectedGroup.POST("/contributions/:id/retry-payment", checkoutLimit, a.contributionHandler.HandleRetryPayment)

		protectedGroup.GET("/campaigns/:id", a.campaignHandler.HandleGetCampaign)
		protectedGroup.GET("/campaigns/:id/activities", a.campaignHandler.HandleListCampaignActivities)
	}

	adminGroup := protectedGroup.Group("/admin", a.auth.HandleAdminMiddleware)
	{
		adminGroup.POST("/contributions/:id/mark-delivered", a.contributionHandler.HandleMarkDelivered)
		adminGroup.POST("/contributions/:id/refund", a.contributionHandler.HandleRefundContribution)
		adminGroup.POST("/contributions/:id/trash", a.contributionHandler.HandleTrashContribution)
		adminGroup.POST("/contributions/:id/restore", a.contributionHandler.HandleRestoreContribution)
		adminGroup.DELETE("/contributions/:id", a.contributionHandler.HandlePurgeContribution)

		adminGroup.PATCH("/campaigns/:id/status", a.campaignHandler.HandleUpdateCampaignStatus)
		adminGroup.PATCH("/campaigns/:id/deadline", a.campaignHandler.HandleUpdateCampaignDeadline)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
