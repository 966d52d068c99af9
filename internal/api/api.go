package api

import (
	"net/http"

	analyticsHandler "lead-engine/internal/analytics/handler"
	authHandler "lead-engine/internal/auth/handler"
	billingHandler "lead-engine/internal/billing/handler"
	leadsHandler "lead-engine/internal/leads/handler"
	membersHandler "lead-engine/internal/members/handler"
	outreachHandler "lead-engine/internal/outreach/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router           *gin.RouterGroup
	authHandler      authHandler.Handler
	leadHandler      leadsHandler.Handler
	outreachHandler  outreachHandler.Handler
	memberHandler    membersHandler.Handler
	analyticsHandler analyticsHandler.Handler
	billingHandler   billingHandler.Handler
}

func New(
	router *gin.RouterGroup,
	authHandler authHandler.Handler,
	leadHandler leadsHandler.Handler,
	outreachHandler outreachHandler.Handler,
	memberHandler membersHandler.Handler,
	analyticsHandler analyticsHandler.Handler,
	billingHandler billingHandler.Handler,
) API {
	return API{
		router:           router,
		authHandler:      authHandler,
		leadHandler:      leadHandler,
		outreachHandler:  outreachHandler,
		memberHandler:    memberHandler,
		analyticsHandler: analyticsHandler,
		billingHandler:   billingHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/signup", a.authHandler.HandleSignup)
		authGroup.POST("/login", a.authHandler.HandleLogin)
	}
	// Stripe calls this endpoint directly, authenticated via signature
	apiGroup.POST("/billing/webhook", a.billingHandler.HandleWebhook)

	protectedGroup := apiGroup.Group("/protected", a.authHandler.HandleJWTMiddleware)
	{
		protectedGroup.GET("/auth/verify", a.authHandler.HandleVerifyToken)
		protectedGroup.GET("/profile", a.authHandler.HandleGetProfile)
		protectedGroup.PUT("/profile", a.authHandler.HandleUpdateProfile)

		protectedGroup.POST("/leads", a.leadHandler.HandleCreateLead)
		protectedGroup.GET("/leads", a.leadHandler.HandleListLeads)
		protectedGroup.POST("/leads/import", a.leadHandler.HandleImportLeads)
		protectedGroup.POST("/leads/discover", a.leadHandler.HandleDiscoverLeads)
		protectedGroup.GET("/leads/criteria", a.leadHandler.HandleGetCriteria)
		protectedGroup.PUT("/leads/criteria", a.leadHandler.HandleUpdateCriteria)
		protectedGroup.GET("/leads/:id", a.leadHandler.HandleGetLead)
		protectedGroup.PUT("/leads/:id", a.leadHandler.HandleUpdateLead)
		protectedGroup.DELETE("/leads/:id", a.leadHandler.HandleDeleteLead)

		protectedGroup.POST("/campaigns", a.outreachHandler.HandleCreateCampaign)
		protectedGroup.GET("/campaigns", a.outreachHandler.HandleListCampaigns)
		protectedGroup.GET("/campaigns/:id", a.outreachHandler.HandleGetCampaign)
		protectedGroup.POST("/campaigns/:id/send", a.outreachHandler.HandleSendCampaign)
		protectedGroup.GET("/campaigns/:id/messages", a.outreachHandler.HandleListMessages)
		protectedGroup.POST("/messages/:id/events", a.outreachHandler.HandleTrackEvent)

		protectedGroup.POST("/members/sync", a.memberHandler.HandleSyncMembers)
		protectedGroup.GET("/members", a.memberHandler.HandleListMembers)
		protectedGroup.GET("/members/churn", a.memberHandler.HandlePredictChurn)
		protectedGroup.GET("/members/:id", a.memberHandler.HandleGetMember)
		protectedGroup.POST("/members/:id/retention", a.memberHandler.HandleSendRetentionMessage)
		protectedGroup.GET("/retention/messages", a.memberHandler.HandleListRetentionMessages)

		protectedGroup.GET("/analytics/dashboard", a.analyticsHandler.HandleDashboard)
		protectedGroup.GET("/analytics/leads", a.analyticsHandler.HandleLeadAnalytics)
		protectedGroup.GET("/analytics/outreach", a.analyticsHandler.HandleOutreachAnalytics)
		protectedGroup.GET("/analytics/retention", a.analyticsHandler.HandleRetentionAnalytics)
		protectedGroup.GET("/analytics/revenue", a.analyticsHandler.HandleRevenueAnalytics)

		protectedGroup.POST("/billing/connect", a.billingHandler.HandleCreateConnectAccount)
		protectedGroup.GET("/billing/connect/status", a.billingHandler.HandleGetConnectStatus)
		protectedGroup.GET("/billing/transactions", a.billingHandler.HandleListTransactions)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
