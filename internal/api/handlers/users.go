package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/models"
	"github.com/truckore/truckore/internal/service"
	"go.uber.org/zap"
)

// UserHandler handles user account management
type UserHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

func userResponse(u *models.User) gin.H {
	resp := gin.H{
		"id":                    u.ID,
		"username":              u.Username,
		"role":                  u.Role,
		"is_active":             u.IsActive,
		"failed_login_attempts": u.FailedLoginAttempts,
		"created_at":            u.CreatedAt,
		"updated_at":            u.UpdatedAt,
	}
	if u.Email.Valid {
		resp["email"] = u.Email.String
	}
	if u.LockedUntil.Valid {
		resp["locked_until"] = u.LockedUntil.Time
	}
	if u.LastLoginAt.Valid {
		resp["last_login_at"] = u.LastLoginAt.Time
	}
	return resp
}

// List returns all user accounts.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Get returns one user account.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// CreateUserRequest represents a request to create a user account
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
	Email    string `json:"email"`
}

// Create adds a user account.
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), &service.CreateUserRequest{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		Email:    req.Email,
	})
	if err != nil {
		h.logger.Warn("Failed to create user", zap.String("username", req.Username), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userResponse(user))
}

// UpdateUserRequest carries optional account changes
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// Update modifies a user account.
func (h *UserHandler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), &service.UpdateUserRequest{
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}

// Delete removes a user account.
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// ChangePasswordRequest carries a self-service password change
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword lets the authenticated user change their own password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	uid, _ := userID.(string)

	if err := h.users.ChangePassword(c.Request.Context(), uid, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// ResetPasswordRequest carries an administrative password reset
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResetPassword sets a user's password without the old-password check.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), c.Param("id"), req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset"})
}
