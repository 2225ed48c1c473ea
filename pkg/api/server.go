// Package api wires tracepilot's domain packages (ingest, evaluation,
// optimize, graderun, llmrpc) onto gin HTTP handlers, one router group per
// resource, following the teacher's handlers.go/server.go split.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/pkg/database"
	"github.com/traceforge/tracepilot/pkg/evaluation"
	"github.com/traceforge/tracepilot/pkg/graderun"
	"github.com/traceforge/tracepilot/pkg/ingest"
	"github.com/traceforge/tracepilot/pkg/llmrpc"
	"github.com/traceforge/tracepilot/pkg/metrics"
	"github.com/traceforge/tracepilot/pkg/optimize"
	"github.com/traceforge/tracepilot/pkg/version"
)

// Server holds every dependency tracepilot's HTTP handlers need.
type Server struct {
	client   *ent.Client
	db       *sql.DB
	ingest   *ingest.Pipeline
	eval     *evaluation.Orchestrator
	optimize *optimize.Optimizer
	grading  *graderun.Runtime
	executor *llmrpc.Executor
	metrics  *metrics.Metrics
}

// NewServer builds a Server over its already-constructed collaborators.
// cmd/tracepilot/main.go owns wiring all of these from config.
func NewServer(
	client *ent.Client,
	db *sql.DB,
	ingestPipeline *ingest.Pipeline,
	evalOrch *evaluation.Orchestrator,
	optimizer *optimize.Optimizer,
	grading *graderun.Runtime,
	executor *llmrpc.Executor,
	m *metrics.Metrics,
) *Server {
	return &Server{
		client:   client,
		db:       db,
		ingest:   ingestPipeline,
		eval:     evalOrch,
		optimize: optimizer,
		grading:  grading,
		executor: executor,
		metrics:  m,
	}
}

// Router builds the gin.Engine exposing every endpoint in spec.md §6.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders(), recordMetrics(s.metrics))

	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(metricsHandler()))

	router.POST("/http-traces", s.IngestHTTPTrace)

	router.POST("/traces", s.CreateTrace)
	router.GET("/traces", s.ListTraces)
	router.GET("/traces/:id", s.GetTrace)

	v1 := router.Group("/v1")
	{
		v1.POST("/tasks", s.CreateTask)
		v1.GET("/tasks", s.ListTasks)
		v1.GET("/tasks/:id", s.GetTask)

		v1.POST("/graders", s.CreateGrader)
		v1.GET("/graders", s.ListGraders)
		v1.GET("/graders/:id", s.GetGrader)
		v1.PATCH("/graders/:id", s.UpdateGrader)
		v1.DELETE("/graders/:id", s.DeleteGrader)

		v1.POST("/grades", s.CreateGrade)
		v1.GET("/grades", s.ListGrades)
		v1.GET("/grades/:id", s.GetGrade)
		v1.DELETE("/grades/:id", s.DeleteGrade)

		v1.POST("/evaluations/tasks/:task_id/config", s.CreateEvaluationConfig)
		v1.GET("/evaluations/tasks/:task_id/config", s.GetEvaluationConfig)
		v1.PATCH("/evaluations/tasks/:task_id/config", s.UpdateEvaluationConfig)

		v1.POST("/evaluations", s.CreateEvaluation)
		v1.GET("/evaluations", s.ListEvaluations)
		v1.GET("/evaluations/:id", s.GetEvaluation)
		v1.DELETE("/evaluations/:id", s.DeleteEvaluation)
	}

	testCases := router.Group("/test-cases/tasks/:task_id/test-cases")
	{
		testCases.POST("", s.CreateTestCase)
		testCases.GET("", s.ListTestCases)
		testCases.PATCH("/:id", s.UpdateTestCase)
		testCases.DELETE("/:id", s.DeleteTestCase)
	}

	executions := router.Group("/executions")
	{
		executions.POST("/implementations/:id/execute", s.ExecuteImplementation)
		executions.POST("/tasks/:id/execute", s.ExecuteTaskOverride)
	}

	return router
}

// Health reports process and database connectivity, following
// cmd/tarsy/main.go's /health handler shape.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.db)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": dbHealth, "error": err.Error(), "version": version.Full()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": dbHealth, "version": version.Full()})
}
