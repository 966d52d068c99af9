package handler

import (
	"errors"
	"net/http"
	"strconv"

	authhandler "lead-engine/internal/auth/handler"
	discovery "lead-engine/internal/discovery/processor"
	"lead-engine/internal/leads/processor"
	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	leadProcessor *processor.LeadProcessor
	logger        *observability.Logger
}

func New(leadProcessor *processor.LeadProcessor, logger *observability.Logger) Handler {
	return Handler{leadProcessor: leadProcessor, logger: logger}
}

type CreateLeadRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Username   *string `json:"username"`
	ProfileURL *string `json:"profile_url"`
	Source     string  `json:"source"`
	Notes      *string `json:"notes"`
}

func (h *Handler) HandleCreateLead(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, err := h.leadProcessor.CreateLead(ctx, userID, processor.CreateLeadInput{
		Name:       req.Name,
		Email:      req.Email,
		Username:   req.Username,
		ProfileURL: req.ProfileURL,
		Source:     req.Source,
		Notes:      req.Notes,
	})
	if err != nil {
		if errors.Is(err, processor.ErrDuplicateLead) {
			c.JSON(http.StatusConflict, gin.H{"error": "lead already exists"})
			return
		}
		h.logger.Error(ctx, "failed to create lead", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create lead"})
		return
	}
	c.JSON(http.StatusCreated, lead)
}

type ImportLeadsRequest struct {
	Leads []CreateLeadRequest `json:"leads" binding:"required,min=1"`
}

func (h *Handler) HandleImportLeads(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req ImportLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inputs := make([]processor.CreateLeadInput, 0, len(req.Leads))
	for _, l := range req.Leads {
		source := l.Source
		if source == "" {
			source = store.LeadSourceImport
		}
		inputs = append(inputs, processor.CreateLeadInput{
			Name:       l.Name,
			Email:      l.Email,
			Username:   l.Username,
			ProfileURL: l.ProfileURL,
			Source:     source,
			Notes:      l.Notes,
		})
	}
	result, err := h.leadProcessor.ImportLeads(ctx, userID, inputs)
	if err != nil {
		h.logger.Error(ctx, "failed to import leads", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import leads"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleListLeads(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	filter := store.LeadFilter{
		Status:       queryPtr(c, "status"),
		Source:       queryPtr(c, "source"),
		QualityGrade: queryPtr(c, "quality_grade"),
		Limit:        queryInt(c, "limit", 50),
		Offset:       queryInt(c, "offset", 0),
	}
	page, err := h.leadProcessor.ListLeads(ctx, userID, filter)
	if err != nil {
		h.logger.Error(ctx, "failed to list leads", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) HandleGetLead(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}
	lead, err := h.leadProcessor.GetLead(ctx, leadID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
			return
		}
		h.logger.Error(ctx, "failed to get lead", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get lead"})
		return
	}
	c.JSON(http.StatusOK, lead)
}

type UpdateLeadRequest struct {
	Name            *string  `json:"name"`
	Email           *string  `json:"email" binding:"omitempty,email"`
	Status          *string  `json:"status"`
	ContactMethod   *string  `json:"contact_method"`
	ConversionValue *float64 `json:"conversion_value"`
}

func (h *Handler) HandleUpdateLead(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}
	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, err := h.leadProcessor.UpdateLead(ctx, leadID, userID, processor.UpdateLeadInput{
		Name:            req.Name,
		Email:           req.Email,
		Status:          req.Status,
		ContactMethod:   req.ContactMethod,
		ConversionValue: req.ConversionValue,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		case errors.Is(err, processor.ErrInvalidStatusTransition):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.logger.Error(ctx, "failed to update lead", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update lead"})
		}
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *Handler) HandleDeleteLead(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}
	if err := h.leadProcessor.DeleteLead(ctx, leadID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
			return
		}
		h.logger.Error(ctx, "failed to delete lead", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete lead"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type DiscoverLeadsRequest struct {
	Niche          string   `json:"niche"`
	Keywords       []string `json:"keywords" binding:"required,min=1"`
	Subreddits     []string `json:"subreddits" binding:"max=10"`
	MinIntentScore float64  `json:"min_intent_score" binding:"min=0,max=1"`
	MaxLeads       int      `json:"max_leads" binding:"min=0,max=100"`
}

func (h *Handler) HandleDiscoverLeads(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Criteria in the request body override the saved ones; an empty body
	// falls back to what the user has configured.
	var posted *discovery.Criteria
	if c.Request.ContentLength > 0 {
		var req DiscoverLeadsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		posted = &discovery.Criteria{
			Niche:          req.Niche,
			Keywords:       req.Keywords,
			Subreddits:     req.Subreddits,
			MinIntentScore: req.MinIntentScore,
			MaxLeads:       req.MaxLeads,
		}
	}

	leads, err := h.leadProcessor.DiscoverLeads(ctx, userID, posted)
	if err != nil {
		if errors.Is(err, discovery.ErrInvalidCriteria) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error(ctx, "failed to discover leads", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to discover leads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads, "count": len(leads)})
}

func (h *Handler) HandleGetCriteria(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	criteria, err := h.leadProcessor.GetCriteria(ctx, userID, c.Query("niche"))
	if err != nil {
		h.logger.Error(ctx, "failed to get discovery criteria", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get discovery criteria"})
		return
	}
	c.JSON(http.StatusOK, criteria)
}

type UpdateCriteriaRequest struct {
	Niche           string   `json:"niche" binding:"required"`
	Keywords        []string `json:"keywords" binding:"required,min=1"`
	Subreddits      []string `json:"subreddits" binding:"max=10"`
	MinIntentScore  float64  `json:"min_intent_score" binding:"min=0,max=1"`
	MinQualityGrade string   `json:"min_quality_grade"`
	MaxLeads        int      `json:"max_leads" binding:"min=0,max=100"`
	IsActive        bool     `json:"is_active"`
}

func (h *Handler) HandleUpdateCriteria(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req UpdateCriteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MinQualityGrade == "" {
		req.MinQualityGrade = store.QualityGradeC
	}
	if req.MaxLeads == 0 {
		req.MaxLeads = 25
	}
	criteria, err := h.leadProcessor.UpdateCriteria(ctx, userID, store.UpsertCriteriaParams{
		Niche:           req.Niche,
		Keywords:        store.StringArray(req.Keywords),
		Subreddits:      store.StringArray(req.Subreddits),
		MinIntentScore:  req.MinIntentScore,
		MinQualityGrade: req.MinQualityGrade,
		MaxLeads:        req.MaxLeads,
		IsActive:        req.IsActive,
	})
	if err != nil {
		h.logger.Error(ctx, "failed to update discovery criteria", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update discovery criteria"})
		return
	}
	c.JSON(http.StatusOK, criteria)
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
