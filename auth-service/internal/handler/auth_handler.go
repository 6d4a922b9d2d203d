package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tattoo-app/auth-service/internal/models"
	"tattoo-app/auth-service/internal/services"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	user, err := h.authService.Register(c.Request.Context(), req)
	if errors.Is(err, models.ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID.Hex()})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var credentials struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&credentials); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	resp, err := h.authService.Login(c.Request.Context(), normalizeEmail(credentials.Email), credentials.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" {
		token = identity.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	access, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// Validate is called by every other service on each request.
func (h *AuthHandler) Validate(c *gin.Context) {
	token := identity.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	caller, err := h.authService.Validate(c.Request.Context(), token)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, caller)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	token := identity.BearerToken(c.GetHeader("Authorization"))
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	caller, ok := identity.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user, err := h.authService.GetUser(c.Request.Context(), caller.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser is the internal directory lookup. Not routed through the gateway.
func (h *AuthHandler) GetUser(c *gin.Context) {
	user, err := h.authService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
