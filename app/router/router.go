package router

import (
	"net/http"

	"verifier/app/handler"
	"verifier/app/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options route settings taken from config
type Options struct {
	APIKey      string // engine API token, empty disables auth
	MetricsPath string // empty disables the prometheus endpoint
}

// Router Router
type Router struct {
	analysisHandler     *handler.AnalysisHandler
	verificationHandler *handler.VerificationHandler
	opts                Options
}

// NewRouter creates a new Router
func NewRouter(analysisHandler *handler.AnalysisHandler, verificationHandler *handler.VerificationHandler, opts Options) *Router {
	return &Router{
		analysisHandler:     analysisHandler,
		verificationHandler: verificationHandler,
		opts:                opts,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.TraceID())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Metrics())

	api := engine.Group("/api/v1")

	// Compute engine API: task queue, verdicts and previous state
	analysis := api.Group("/analysis")
	analysis.Use(middleware.AuthMiddleware(r.opts.APIKey))
	{
		tasks := analysis.Group("/tasks")
		{
			tasks.POST("/claim", r.analysisHandler.ClaimTask)
			tasks.POST("/statuses", r.analysisHandler.GetStatuses)
			tasks.POST("/failure", r.analysisHandler.ReportFailure)
			tasks.GET("/:task_id", r.analysisHandler.GetTask)
			tasks.GET("/:task_id/events", r.analysisHandler.GetTaskEvents)
		}

		analysis.POST("/results", r.analysisHandler.SaveResult)

		state := analysis.Group("/state")
		{
			state.GET("/cumulative-sums", r.analysisHandler.GetCumulativeSums)
			state.GET("/short-term-history", r.analysisHandler.GetShortTermHistory)
			state.GET("/anomalous-patterns", r.analysisHandler.GetAnomalousPatterns)
		}

		analysis.GET("/log-clusters", r.analysisHandler.GetLogClusters)
		analysis.GET("/clustered-logs", r.analysisHandler.GetClusteredLogs)
	}

	// Control plane: sources, job instances, window dispatch and risk views
	sources := api.Group("/verification-tasks")
	{
		sources.PUT("/:id", r.verificationHandler.SaveVerificationTask)
		sources.GET("/:id", r.verificationHandler.GetVerificationTask)
		sources.POST("/:id/windows", r.verificationHandler.DispatchWindow)
		sources.POST("/:id/host-records", r.verificationHandler.AddHostRecords)
		sources.GET("/:id/health", r.verificationHandler.GetHealthInfo)
		sources.GET("/:id/risk-summaries", r.analysisHandler.GetRiskSummaries)
		sources.GET("/:id/anomalies", r.analysisHandler.GetAnomalies)
	}

	api.PUT("/job-instances/:instance_id", r.verificationHandler.SaveJobInstance)

	deployments := api.Group("/deployments")
	{
		deployments.GET("/:instance_id/risk", r.verificationHandler.GetLatestRisk)
		deployments.GET("/:instance_id/canary-info", r.verificationHandler.GetCanaryInfo)
	}

	if r.opts.MetricsPath != "" {
		engine.GET(r.opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
