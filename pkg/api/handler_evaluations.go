package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/ent/evaluation"
	"github.com/traceforge/tracepilot/ent/evaluationconfig"
	"github.com/traceforge/tracepilot/ent/targettaskmetrics"
	pkgevaluation "github.com/traceforge/tracepilot/pkg/evaluation"
)

// CreateEvaluation handles POST /v1/evaluations. Execution runs in the
// background; the returned record is RUNNING (spec.md §4.H).
func (s *Server) CreateEvaluation(c *gin.Context) {
	var body createEvaluationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	eval, err := s.eval.CreateEvaluation(c.Request.Context(), body.ImplementationID)
	if err != nil {
		respondError(c, err)
		return
	}

	go s.eval.ExecuteInBackground(context.Background(), eval.ID)

	c.JSON(http.StatusCreated, s.toEvaluationResponse(c, eval))
}

// ListEvaluations handles GET /v1/evaluations[?implementation_id|task_id].
func (s *Server) ListEvaluations(c *gin.Context) {
	query := s.client.Evaluation.Query()
	if implID := c.Query("implementation_id"); implID != "" {
		query = query.Where(evaluation.ImplementationID(implID))
	}
	if taskID := c.Query("task_id"); taskID != "" {
		query = query.Where(evaluation.TaskID(taskID))
	}

	evals, err := query.Order(ent.Desc(evaluation.FieldCreatedAt)).All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]evaluationResponse, 0, len(evals))
	for _, e := range evals {
		items = append(items, s.toEvaluationResponse(c, e))
	}
	c.JSON(http.StatusOK, items)
}

// GetEvaluation handles GET /v1/evaluations/:id, computing efficiency and
// final scores on read against the task's TargetTaskMetrics and
// EvaluationConfig weights (spec.md §4.H on-demand calculations).
func (s *Server) GetEvaluation(c *gin.Context) {
	id := c.Param("id")
	found, err := s.client.Evaluation.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.toEvaluationResponse(c, found))
}

// DeleteEvaluation handles DELETE /v1/evaluations/:id.
func (s *Server) DeleteEvaluation(c *gin.Context) {
	id := c.Param("id")
	if err := s.client.Evaluation.DeleteOneID(id).Exec(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) toEvaluationResponse(c *gin.Context, e *ent.Evaluation) evaluationResponse {
	resp := evaluationResponse{
		ID:                 e.ID,
		TaskID:             e.TaskID,
		ImplementationID:   e.ImplementationID,
		Status:             string(e.Status),
		GraderScores:       e.GraderScores,
		GraderErrorRates:   e.GraderErrorRates,
		QualityScore:       e.QualityScore,
		AvgCost:            e.AvgCost,
		AvgExecutionTimeMs: e.AvgExecutionTimeMs,
		TestCaseCount:      e.TestCaseCount,
		Error:              e.Error,
	}

	metrics, err := s.client.TargetTaskMetrics.Query().
		Where(targettaskmetrics.TaskID(e.TaskID)).
		Only(c.Request.Context())
	if err == nil {
		resp.CostEfficiency = pkgevaluation.CostEfficiency(metrics.BestCost, e.AvgCost)
		resp.TimeEfficiency = pkgevaluation.TimeEfficiency(metrics.BestTimeMs, e.AvgExecutionTimeMs)
	}

	cfg, err := s.client.EvaluationConfig.Query().
		Where(evaluationconfig.TaskID(e.TaskID)).
		Only(c.Request.Context())
	weights := pkgevaluation.DefaultWeights
	if err == nil {
		weights = pkgevaluation.Weights{Quality: cfg.WeightQuality, Cost: cfg.WeightCost, Time: cfg.WeightTime}
	}
	resp.FinalScore = pkgevaluation.FinalScore(weights, e.QualityScore, resp.CostEfficiency, resp.TimeEfficiency)

	return resp
}
