package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/auth"
	"github.com/truckore/truckore/internal/config"
	"github.com/truckore/truckore/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles authentication operations
type AuthHandler struct {
	users  *service.UserService
	cfg    *config.Config
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *service.UserService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a user and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("Login failed", zap.String("username", req.Username), zap.Error(err))
		respondError(c, err)
		return
	}

	token, err := auth.GenerateToken(
		user.ID,
		user.Username,
		user.Role,
		h.cfg.Auth.JWT.Secret,
		h.cfg.Auth.JWT.Issuer,
		h.cfg.Auth.JWT.Expiration,
	)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.logger.Info("User logged in", zap.String("username", req.Username))

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// Logout records the logout in the security log.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, _ := c.Get("user_id")
	username, _ := c.Get("username")

	uid, _ := userID.(string)
	uname, _ := username.(string)
	h.users.Logout(c.Request.Context(), uid, uname)

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GetCurrentUser returns the currently authenticated user
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, _ := c.Get("user_id")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"username": username,
		"role":     role,
	})
}
