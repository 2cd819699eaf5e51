package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/cryptoetl/internal/api/middleware"
	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/service"
)

// DataHandler serves unified records and run statistics.
type DataHandler struct {
	queryService *service.QueryService
}

// NewDataHandler creates a new data handler
func NewDataHandler(queryService *service.QueryService) *DataHandler {
	return &DataHandler{queryService: queryService}
}

// DataMetadata describes the page returned by ListData.
type DataMetadata struct {
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
	TotalRecords int64  `json:"total_records"`
	RequestID    string `json:"request_id,omitempty"`
}

// DataResponse is the body of GET /data.
type DataResponse struct {
	Metadata DataMetadata           `json:"metadata"`
	Data     []domain.UnifiedRecord `json:"data"`
}

// ListData handles GET /data?page=&limit=&source=.
func (h *DataHandler) ListData(c *gin.Context) {
	ctx := c.Request.Context()

	page, err := intQuery(c, "page", 1, 1, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := intQuery(c, "limit", service.DefaultPageLimit, 1, service.MaxPageLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	source := strings.TrimSpace(c.Query("source"))

	result, err := h.queryService.List(ctx, service.ListQuery{Page: page, Limit: limit, Source: source})
	if err != nil {
		logger.CtxError(ctx, "Failed to list data: page=%d, limit=%d, source=%s, error=%v", page, limit, source, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list data"})
		return
	}

	c.JSON(http.StatusOK, DataResponse{
		Metadata: DataMetadata{
			Page:         result.Page,
			Limit:        result.Limit,
			TotalRecords: result.TotalRecords,
			RequestID:    middleware.GetRequestID(c),
		},
		Data: result.Records,
	})
}

// Stats handles GET /stats.
func (h *DataHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.queryService.Stats(ctx)
	if err != nil {
		logger.CtxError(ctx, "Failed to load stats: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// intQuery parses an integer query parameter. max <= 0 means unbounded.
func intQuery(c *gin.Context, name string, def, min, max int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be >= %d", name, min)
	}
	if max > 0 && v > max {
		return 0, fmt.Errorf("%s must be <= %d", name, max)
	}
	return v, nil
}
