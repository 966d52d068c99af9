package handler

import (
	"net/http"

	"lead-engine/internal/analytics/processor"
	authhandler "lead-engine/internal/auth/handler"
	"lead-engine/internal/observability"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	analyticsProcessor *processor.AnalyticsProcessor
	logger             *observability.Logger
}

func New(analyticsProcessor *processor.AnalyticsProcessor, logger *observability.Logger) Handler {
	return Handler{analyticsProcessor: analyticsProcessor, logger: logger}
}

func (h *Handler) HandleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	dashboard, err := h.analyticsProcessor.GetDashboard(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to assemble dashboard", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) HandleLeadAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	analytics, err := h.analyticsProcessor.GetLeadAnalytics(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to load lead analytics", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load lead analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *Handler) HandleOutreachAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	analytics, err := h.analyticsProcessor.GetOutreachAnalytics(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to load outreach analytics", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load outreach analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *Handler) HandleRetentionAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	analytics, err := h.analyticsProcessor.GetRetentionAnalytics(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to load retention analytics", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load retention analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *Handler) HandleRevenueAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	analytics, err := h.analyticsProcessor.GetRevenueAnalytics(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to load revenue analytics", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load revenue analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}
