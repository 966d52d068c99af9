package handler

import (
	"errors"
	"net/http"
	"strings"

	"lead-engine/internal/auth/processor"
	"lead-engine/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	authProcessor processor.AuthProcessor
	logger        *observability.Logger
}

func New(authProcessor processor.AuthProcessor, logger *observability.Logger) Handler {
	return Handler{authProcessor: authProcessor, logger: logger}
}

type SignupRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) HandleSignup(c *gin.Context) {
	var req SignupRequest
	ctx := c.Request.Context()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, token, err := h.authProcessor.Signup(ctx, req.FullName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, processor.ErrEmailAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error(ctx, "failed to signup", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign up"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (h *Handler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	ctx := c.Request.Context()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, token, err := h.authProcessor.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, processor.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.logger.Error(ctx, "failed to login", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handler) HandleJWTMiddleware(c *gin.Context) {
	ctx := c.Request.Context()
	tokenHeader := c.GetHeader("Authorization")

	if tokenHeader == "" || !strings.HasPrefix(tokenHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
		return
	}

	tokenString := strings.TrimPrefix(tokenHeader, "Bearer ")
	claims, err := h.authProcessor.ValidateJWTToken(ctx, tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	sub, err := claims.GetSubject()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	c.Set("User-ID", sub)
	c.Next()
}

// HandleVerifyToken confirms the bearer token accepted by the JWT
// middleware and echoes the authenticated user id.
func (h *Handler) HandleVerifyToken(c *gin.Context) {
	userID, ok := UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user from context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user_id": userID})
}

func (h *Handler) HandleGetProfile(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user from context"})
		return
	}
	user, err := h.authProcessor.GetProfile(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "failed to get user profile", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type UpdateProfileRequest struct {
	FullName          *string `json:"full_name"`
	WhopCommunityID   *string `json:"whop_community_id"`
	WhopCommunityName *string `json:"whop_community_name"`
	WhopAPIKey        *string `json:"whop_api_key"`
}

func (h *Handler) HandleUpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user from context"})
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.authProcessor.UpdateProfile(ctx, userID, processor.UpdateProfileParams{
		FullName:          req.FullName,
		WhopCommunityID:   req.WhopCommunityID,
		WhopCommunityName: req.WhopCommunityName,
		WhopAPIKey:        req.WhopAPIKey,
	})
	if err != nil {
		h.logger.Error(ctx, "failed to update user profile", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UserIDFromContext reads the authenticated user id set by the JWT
// middleware. Handlers in other packages share this helper.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get("User-ID")
	if !ok {
		return uuid.Nil, false
	}
	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
