package api

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent/evaluationconfig"
)

// weightSumTolerance matches spec.md §8's |Σw - 1| <= 0.01 invariant.
const weightSumTolerance = 0.01

func weightsValid(quality, cost, timeWeight float64) bool {
	return math.Abs(quality+cost+timeWeight-1) <= weightSumTolerance
}

// CreateEvaluationConfig handles POST /v1/evaluations/tasks/:task_id/config.
func (s *Server) CreateEvaluationConfig(c *gin.Context) {
	taskID := c.Param("task_id")
	var body evaluationConfigRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if !weightsValid(body.WeightQuality, body.WeightCost, body.WeightTime) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "weight_quality + weight_cost + weight_time must sum to 1"})
		return
	}

	builder := s.client.EvaluationConfig.Create().
		SetID(uuid.New().String()).
		SetTaskID(taskID).
		SetWeightQuality(body.WeightQuality).
		SetWeightCost(body.WeightCost).
		SetWeightTime(body.WeightTime)
	if body.GraderIDs != nil {
		builder.SetGraderIds(body.GraderIDs)
	}

	created, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetEvaluationConfig handles GET /v1/evaluations/tasks/:task_id/config.
func (s *Server) GetEvaluationConfig(c *gin.Context) {
	taskID := c.Param("task_id")
	found, err := s.client.EvaluationConfig.Query().
		Where(evaluationconfig.TaskID(taskID)).
		Only(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// UpdateEvaluationConfig handles PATCH /v1/evaluations/tasks/:task_id/config.
func (s *Server) UpdateEvaluationConfig(c *gin.Context) {
	taskID := c.Param("task_id")
	var body evaluationConfigRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	existing, err := s.client.EvaluationConfig.Query().
		Where(evaluationconfig.TaskID(taskID)).
		Only(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	quality, cost, timeWeight := body.WeightQuality, body.WeightCost, body.WeightTime
	if quality == 0 && cost == 0 && timeWeight == 0 {
		quality, cost, timeWeight = existing.WeightQuality, existing.WeightCost, existing.WeightTime
	}
	if !weightsValid(quality, cost, timeWeight) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "weight_quality + weight_cost + weight_time must sum to 1"})
		return
	}

	builder := existing.Update().
		SetWeightQuality(quality).
		SetWeightCost(cost).
		SetWeightTime(timeWeight)
	if body.GraderIDs != nil {
		builder.SetGraderIds(body.GraderIDs)
	}

	updated, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
