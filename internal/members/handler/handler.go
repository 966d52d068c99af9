package handler

import (
	"errors"
	"net/http"
	"strconv"

	authhandler "lead-engine/internal/auth/handler"
	"lead-engine/internal/members/processor"
	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	memberProcessor *processor.MemberProcessor
	logger          *observability.Logger
}

func New(memberProcessor *processor.MemberProcessor, logger *observability.Logger) Handler {
	return Handler{memberProcessor: memberProcessor, logger: logger}
}

func (h *Handler) HandleSyncMembers(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	result, err := h.memberProcessor.SyncMembers(ctx, userID)
	if err != nil {
		if errors.Is(err, processor.ErrWhopNotConfigured) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "whop community is not configured"})
			return
		}
		h.logger.Error(ctx, "failed to sync members", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sync members"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleListMembers(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	filter := store.MemberFilter{
		Status:    queryPtr(c, "status"),
		ChurnRisk: queryPtr(c, "churn_risk"),
		Limit:     queryInt(c, "limit", 100),
		Offset:    queryInt(c, "offset", 0),
	}
	members, err := h.memberProcessor.ListMembers(ctx, userID, filter)
	if err != nil {
		h.logger.Error(ctx, "failed to list members", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *Handler) HandleGetMember(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}
	member, err := h.memberProcessor.GetMember(ctx, memberID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}
		h.logger.Error(ctx, "failed to get member", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get member"})
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *Handler) HandlePredictChurn(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	summary, err := h.memberProcessor.PredictChurn(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to predict churn", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to predict churn"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type SendRetentionRequest struct {
	MessageType string `json:"message_type" binding:"required,oneof=reminder coupon personal_check_in"`
}

func (h *Handler) HandleSendRetentionMessage(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}
	var req SendRetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	message, err := h.memberProcessor.SendRetentionMessage(ctx, userID, memberID, req.MessageType)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		case errors.Is(err, processor.ErrMemberNoEmail):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "member has no email address"})
		default:
			h.logger.Error(ctx, "failed to send retention message", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send retention message"})
		}
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *Handler) HandleListRetentionMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messages, err := h.memberProcessor.ListRetentionMessages(ctx, userID,
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.logger.Error(ctx, "failed to list retention messages", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list retention messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func queryPtr(c *gin.Context, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
