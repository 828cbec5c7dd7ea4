package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/crm_api/service"
)

// AuthHandler handles staff sign-in
type AuthHandler struct {
	authService service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *slog.Logger, authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login exchanges staff credentials for a bearer token
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	token, expiresAt, member, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("Login rejected", "client_ip", c.ClientIP(), "error", err)
		respondError(c, h.logger, err)
		return
	}

	RespondOK(c, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		Staff:     mapStaffToResponse(member),
	})
}
