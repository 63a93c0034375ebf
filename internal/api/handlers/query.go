package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/storage"
	"go.uber.org/zap"
)

// QueryHandler exposes the raw command boundary used by trusted UI
// collaborators (reporting screens, master-data grids). Restricted to
// super admins.
type QueryHandler struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewQueryHandler creates a new raw query handler
func NewQueryHandler(store *storage.Store, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{store: store, logger: logger}
}

// QueryRequest is a parameterized statement from the command boundary
type QueryRequest struct {
	Statement string `json:"statement" binding:"required"`
	Params    []any  `json:"params"`
}

// ExecuteQuery runs a parameterized SELECT and returns the rows.
func (h *QueryHandler) ExecuteQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.store.ExecuteQuery(c.Request.Context(), req.Statement, req.Params)
	if err != nil {
		h.logger.Warn("Raw query failed", zap.Error(err))
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []storage.Row{}
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// ExecuteNonQuery runs a parameterized mutation.
func (h *QueryHandler) ExecuteNonQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.ExecuteNonQuery(c.Request.Context(), req.Statement, req.Params); err != nil {
		h.logger.Warn("Raw non-query failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
