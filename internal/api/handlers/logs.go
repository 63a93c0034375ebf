package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/service"
	"go.uber.org/zap"
)

// LogHandler exposes the security audit log to administrative tooling
type LogHandler struct {
	audit  *service.AuditService
	logger *zap.Logger
}

// NewLogHandler creates a new security log handler
func NewLogHandler(audit *service.AuditService, logger *zap.Logger) *LogHandler {
	return &LogHandler{audit: audit, logger: logger}
}

// List returns recent security log entries, newest first. Supports ?limit=
// and ?user_id= query parameters.
func (h *LogHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.audit.Query(c.Request.Context(), limit, c.Query("user_id"))
	if err != nil {
		h.logger.Error("Failed to query security logs", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ListByDateRange returns entries between ?start= and ?end= (RFC 3339).
func (h *LogHandler) ListByDateRange(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start time"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end time"})
		return
	}

	entries, err := h.audit.QueryByDateRange(c.Request.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to query security logs", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Cleanup deletes entries older than ?days_to_keep= days (default 90).
func (h *LogHandler) Cleanup(c *gin.Context) {
	daysToKeep := 90
	if raw := c.Query("days_to_keep"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days_to_keep"})
			return
		}
		daysToKeep = n
	}

	removed, err := h.audit.Cleanup(c.Request.Context(), daysToKeep)
	if err != nil {
		h.logger.Error("Security log cleanup failed", zap.Error(err))
		respondError(c, err)
		return
	}

	h.logger.Info("Security log cleanup completed",
		zap.Int("days_to_keep", daysToKeep),
		zap.Int("removed", removed),
	)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
