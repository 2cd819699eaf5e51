package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/cryptoetl/internal/api/handler"
	"github.com/timmy/cryptoetl/internal/api/middleware"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/service"
)

// RouterDeps groups what the HTTP layer needs.
type RouterDeps struct {
	DB           *gorm.DB
	QueryService *service.QueryService
	// Trigger is optional; without it POST /jobs/run answers 503.
	Trigger handler.RunTrigger
	Logger  *logger.Logger
	CORS    middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB)
	dataHandler := handler.NewDataHandler(deps.QueryService)
	jobsHandler := handler.NewJobsHandler(deps.QueryService, deps.Trigger)

	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)
	r.GET("/tables", healthHandler.Tables)

	r.GET("/data", dataHandler.ListData)
	r.GET("/stats", dataHandler.Stats)

	jobs := r.Group("/jobs")
	{
		jobs.GET("", jobsHandler.ListJobs)
		jobs.POST("/run", jobsHandler.TriggerRun)
		jobs.GET("/:run_id", jobsHandler.GetJob)
	}

	return r
}
