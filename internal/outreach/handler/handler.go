package handler

import (
	"errors"
	"net/http"

	authhandler "lead-engine/internal/auth/handler"
	"lead-engine/internal/observability"
	"lead-engine/internal/outreach/processor"
	"lead-engine/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	outreachProcessor *processor.OutreachProcessor
	logger            *observability.Logger
}

func New(outreachProcessor *processor.OutreachProcessor, logger *observability.Logger) Handler {
	return Handler{outreachProcessor: outreachProcessor, logger: logger}
}

type CreateCampaignRequest struct {
	Name                   string  `json:"name" binding:"required"`
	Description            *string `json:"description"`
	SubjectTemplate        *string `json:"subject_template"`
	MessageTemplate        string  `json:"message_template" binding:"required"`
	PersonalizationEnabled bool    `json:"personalization_enabled"`
}

func (h *Handler) HandleCreateCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	campaign, err := h.outreachProcessor.CreateCampaign(ctx, userID, processor.CreateCampaignInput{
		Name:                   req.Name,
		Description:            req.Description,
		SubjectTemplate:        req.SubjectTemplate,
		MessageTemplate:        req.MessageTemplate,
		PersonalizationEnabled: req.PersonalizationEnabled,
	})
	if err != nil {
		h.logger.Error(ctx, "failed to create campaign", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create campaign"})
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (h *Handler) HandleListCampaigns(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	campaigns, err := h.outreachProcessor.ListCampaigns(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to list campaigns", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list campaigns"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (h *Handler) HandleGetCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}
	campaign, err := h.outreachProcessor.GetCampaign(ctx, campaignID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		h.logger.Error(ctx, "failed to get campaign", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get campaign"})
		return
	}
	c.JSON(http.StatusOK, campaign)
}

type SendCampaignRequest struct {
	LeadIDs []uuid.UUID `json:"lead_ids" binding:"required,min=1"`
}

func (h *Handler) HandleSendCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}
	var req SendCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.outreachProcessor.SendCampaign(ctx, userID, campaignID, req.LeadIDs)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		case errors.Is(err, processor.ErrCampaignNotSendable):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "campaign is not in a sendable state"})
		default:
			h.logger.Error(ctx, "failed to send campaign", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send campaign"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}
	messages, err := h.outreachProcessor.ListMessages(ctx, campaignID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		h.logger.Error(ctx, "failed to list messages", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type TrackEventRequest struct {
	Event string `json:"event" binding:"required"`
}

func (h *Handler) HandleTrackEvent(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	var req TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	message, err := h.outreachProcessor.TrackEvent(ctx, userID, messageID, req.Event)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, processor.ErrUnknownMessageEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error(ctx, "failed to track message event", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to track message event"})
		}
		return
	}
	c.JSON(http.StatusOK, message)
}
