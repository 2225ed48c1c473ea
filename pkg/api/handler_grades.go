package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent/grade"
)

// CreateGrade handles POST /v1/grades. Exactly one of trace_id /
// execution_result_id must be set (spec.md §8); the CHECK constraint added
// by migration 0002 backs this up at the storage layer.
func (s *Server) CreateGrade(c *gin.Context) {
	var body createGradeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	hasTrace := body.TraceID != ""
	hasExecution := body.ExecutionResultID != ""
	if hasTrace == hasExecution {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "exactly one of trace_id or execution_result_id is required",
		})
		return
	}

	now := time.Now()
	builder := s.client.Grade.Create().
		SetID(uuid.New().String()).
		SetGraderID(body.GraderID).
		SetGradingStartedAt(now).
		SetGradingCompletedAt(now)
	if hasTrace {
		builder.SetTraceID(body.TraceID)
	}
	if hasExecution {
		builder.SetExecutionResultID(body.ExecutionResultID)
	}

	created, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListGrades handles GET /v1/grades[?trace_id|execution_result_id|grader_id].
func (s *Server) ListGrades(c *gin.Context) {
	query := s.client.Grade.Query()
	if traceID := c.Query("trace_id"); traceID != "" {
		query = query.Where(grade.TraceID(traceID))
	}
	if executionResultID := c.Query("execution_result_id"); executionResultID != "" {
		query = query.Where(grade.ExecutionResultID(executionResultID))
	}
	if graderID := c.Query("grader_id"); graderID != "" {
		query = query.Where(grade.GraderID(graderID))
	}

	grades, err := query.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grades)
}

// GetGrade handles GET /v1/grades/:id.
func (s *Server) GetGrade(c *gin.Context) {
	id := c.Param("id")
	found, err := s.client.Grade.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// DeleteGrade handles DELETE /v1/grades/:id.
func (s *Server) DeleteGrade(c *gin.Context) {
	id := c.Param("id")
	if err := s.client.Grade.DeleteOneID(id).Exec(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
