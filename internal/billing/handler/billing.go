package handler

import (
	"io"
	"net/http"
	"strconv"

	authhandler "lead-engine/internal/auth/handler"
	"lead-engine/internal/billing/processor"
	"lead-engine/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"
)

type Handler struct {
	billingProcessor *processor.BillingProcessor
	logger           *observability.Logger
}

func New(billingProcessor *processor.BillingProcessor, logger *observability.Logger) Handler {
	return Handler{billingProcessor: billingProcessor, logger: logger}
}

func (h *Handler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error(ctx, "failed to read request body", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	signatureHeader := c.GetHeader("Stripe-Signature")
	if signatureHeader == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing Stripe-Signature header"})
		return
	}
	event, err := webhook.ConstructEvent(payload, signatureHeader, h.billingProcessor.WebhookSecret)
	if err != nil {
		h.logger.Error(ctx, "failed to verify webhook signature", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if err := h.billingProcessor.HandleWebhook(ctx, event); err != nil {
		h.logger.Error(ctx, "failed to handle webhook", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to handle webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) HandleCreateConnectAccount(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	result, err := h.billingProcessor.CreateConnectAccount(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to create connect account", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create connect account"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleGetConnectStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	status, err := h.billingProcessor.GetConnectStatus(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to get connect status", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get connect status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) HandleListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, offset := 100, 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	transactions, err := h.billingProcessor.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error(ctx, "failed to list transactions", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
