package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/repository"
)

const pingTimeout = 2 * time.Second

// HealthHandler handles liveness and schema introspection endpoints.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Root returns a banner.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "cryptoetl is running"})
}

// Health pings the database. A failed ping yields 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	if err := repository.Ping(ctx, h.db); err != nil {
		logger.CtxWarn(c.Request.Context(), "Health check failed: error=%v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     "unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"db":     "connected",
	})
}

// Tables lists the tables in the connected database.
func (h *HealthHandler) Tables(c *gin.Context) {
	tables, err := repository.ListTables(c.Request.Context(), h.db)
	if err != nil {
		logger.CtxError(c.Request.Context(), "Failed to list tables: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tables"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}
