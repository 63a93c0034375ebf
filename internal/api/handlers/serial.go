package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/models"
	"github.com/truckore/truckore/internal/service"
	"go.uber.org/zap"
)

// SerialHandler handles document serial number operations
type SerialHandler struct {
	serials *service.SerialService
	logger  *zap.Logger
}

// NewSerialHandler creates a new serial number handler
func NewSerialHandler(serials *service.SerialService, logger *zap.Logger) *SerialHandler {
	return &SerialHandler{serials: serials, logger: logger}
}

// Next issues the next serial number, consuming the counter.
func (h *SerialHandler) Next(c *gin.Context) {
	serial, err := h.serials.Next(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to issue serial number", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"serial_number": serial})
}

// Preview formats a sample from the posted configuration without touching
// the stored counter.
func (h *SerialHandler) Preview(c *gin.Context) {
	var cfg models.SerialNumberConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview": h.serials.Preview(cfg)})
}

// GetConfig returns the stored serial number configuration.
func (h *SerialHandler) GetConfig(c *gin.Context) {
	cfg, err := h.serials.GetConfig(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// SetConfig replaces the serial number configuration.
func (h *SerialHandler) SetConfig(c *gin.Context) {
	var cfg models.SerialNumberConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.serials.SetConfig(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "serial number configuration updated"})
}

// ResetCounter resets the counter to its configured start.
func (h *SerialHandler) ResetCounter(c *gin.Context) {
	if err := h.serials.ResetCounter(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "counter reset"})
}
