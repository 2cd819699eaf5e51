package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/service"
)

// RunTrigger starts an ETL run in the background.
type RunTrigger interface {
	Trigger(ctx context.Context) error
	Running() bool
}

// JobsHandler exposes job history and manual runs.
type JobsHandler struct {
	queryService *service.QueryService
	trigger      RunTrigger
}

// NewJobsHandler creates a new jobs handler. trigger may be nil, in which
// case manual runs are refused.
func NewJobsHandler(queryService *service.QueryService, trigger RunTrigger) *JobsHandler {
	return &JobsHandler{queryService: queryService, trigger: trigger}
}

// JobsResponse is the body of GET /jobs.
type JobsResponse struct {
	Running bool            `json:"running"`
	Jobs    []domain.JobRun `json:"jobs"`
}

// ListJobs handles GET /jobs?limit=.
func (h *JobsHandler) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := intQuery(c, "limit", service.DefaultJobsLimit, 1, service.MaxJobsLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobs, err := h.queryService.RecentJobs(ctx, limit)
	if err != nil {
		logger.CtxError(ctx, "Failed to list jobs: limit=%d, error=%v", limit, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, JobsResponse{
		Running: h.trigger != nil && h.trigger.Running(),
		Jobs:    jobs,
	})
}

// GetJob handles GET /jobs/:run_id.
func (h *JobsHandler) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("run_id")

	job, err := h.queryService.Job(ctx, runID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		logger.CtxError(ctx, "Failed to load job: run_id=%s, error=%v", runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// TriggerRun handles POST /jobs/run. The run continues after the response.
func (h *JobsHandler) TriggerRun(c *gin.Context) {
	ctx := c.Request.Context()

	if h.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "manual runs are disabled"})
		return
	}

	if err := h.trigger.Trigger(ctx); err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			logger.CtxWarn(ctx, "Run request rejected: already running, client_ip=%s", c.ClientIP())
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		logger.CtxError(ctx, "Failed to start run: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
		return
	}

	logger.CtxInfo(ctx, "Manual run started: client_ip=%s", c.ClientIP())
	c.JSON(http.StatusAccepted, gin.H{"message": "run started"})
}
