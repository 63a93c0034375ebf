// Package handlers provides HTTP request handlers for the Truckore identity
// core API: first-run setup, authentication, user management, serial number
// issuance, the security audit log, and the raw query boundary.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/service"
	"go.uber.org/zap"
)

// SetupHandler handles first-run provisioning
type SetupHandler struct {
	users   *service.UserService
	configs *service.ConfigService
	logger  *zap.Logger
}

// NewSetupHandler creates a new setup handler
func NewSetupHandler(users *service.UserService, configs *service.ConfigService, logger *zap.Logger) *SetupHandler {
	return &SetupHandler{
		users:   users,
		configs: configs,
		logger:  logger,
	}
}

// GetStatus checks if initial setup has been completed.
func (h *SetupHandler) GetStatus(c *gin.Context) {
	complete, err := h.configs.IsSetupComplete(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to check setup status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check setup status"})
		return
	}

	hasUsers, err := h.users.HasAnyUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to check for existing users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check setup status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"setup_complete": complete,
		"has_users":      hasUsers,
	})
}

// SetupRequest represents initial setup request
type SetupRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
	Email    string `json:"email"`
}

// PerformSetup creates the super admin account and marks setup complete.
func (h *SetupHandler) PerformSetup(c *gin.Context) {
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.InitialSetup(c.Request.Context(), &service.CreateUserRequest{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		h.logger.Error("Setup failed", zap.Error(err))
		respondError(c, err)
		return
	}

	h.logger.Info("Initial setup completed", zap.String("username", req.Username))

	c.JSON(http.StatusOK, gin.H{
		"message":  "Setup completed successfully",
		"username": user.Username,
		"user_id":  user.ID,
	})
}
