package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/service"
	"github.com/truckore/truckore/internal/storage"
)

// respondError maps domain errors onto HTTP status codes. Lockout and
// inactive-account failures carry actionable detail; credential failures
// stay generic.
func respondError(c *gin.Context, err error) {
	var locked *service.AccountLockedError
	if errors.As(err, &locked) {
		c.JSON(http.StatusLocked, gin.H{
			"error":             locked.Error(),
			"remaining_minutes": locked.RemainingMinutes(),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrInvalidCredentials.Error()})
	case errors.Is(err, service.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": service.ErrAccountInactive.Error()})
	case errors.Is(err, service.ErrProtectedAccount):
		c.JSON(http.StatusForbidden, gin.H{"error": service.ErrProtectedAccount.Error()})
	case errors.Is(err, service.ErrDuplicateUsername):
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrDuplicateUsername.Error()})
	case errors.Is(err, service.ErrSetupComplete):
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrSetupComplete.Error()})
	case errors.Is(err, service.ErrIncorrectPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrIncorrectPassword.Error()})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrUserNotFound.Error()})
	case errors.Is(err, storage.ErrUnsupportedStatement):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
