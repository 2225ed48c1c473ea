package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent/implementation"
	"github.com/traceforge/tracepilot/ent/task"
	"github.com/traceforge/tracepilot/ent/trace"
	"github.com/traceforge/tracepilot/pkg/pricing"
)

const (
	defaultPercentile    = 95
	defaultHalfLifeHours = 168
)

// CreateTask handles POST /v1/tasks.
func (s *Server) CreateTask(c *gin.Context) {
	var body createTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	builder := s.client.Task.Create().
		SetID(uuid.New().String()).
		SetProjectID(body.ProjectID).
		SetName(body.Name)
	if body.Description != "" {
		builder.SetDescription(body.Description)
	}
	if body.Path != nil {
		builder.SetPath(*body.Path)
	}
	if body.ProductionVersionID != nil {
		builder.SetProductionVersionID(*body.ProductionVersionID)
	}
	if body.ResponseSchema != nil {
		builder.SetResponseSchema(body.ResponseSchema)
	}

	created, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListTasks handles GET /v1/tasks[?percentile=95&half_life_hours=168],
// augmenting each row with §4.G weighted cost/latency percentiles and its
// last trace activity timestamp.
func (s *Server) ListTasks(c *gin.Context) {
	percentile := queryFloat(c, "percentile", defaultPercentile)
	halfLifeHours := queryFloat(c, "half_life_hours", defaultHalfLifeHours)

	tasks, err := s.client.Task.Query().All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	items := make([]taskListItem, 0, len(tasks))
	for _, t := range tasks {
		item := taskListItem{
			ID:          t.ID,
			ProjectID:   t.ProjectID,
			Name:        t.Name,
			Description: t.Description,
			Path:        t.Path,
		}

		costPct, latencyPct, lastActivity, err := s.taskTraceStats(c.Request.Context(), t.ID, percentile, halfLifeHours, now)
		if err != nil {
			respondError(c, err)
			return
		}
		item.CostPercentile = costPct
		item.LatencyPercentile = latencyPct
		if lastActivity != nil {
			formatted := lastActivity.Format(time.RFC3339Nano)
			item.LastActivity = &formatted
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, items)
}

// taskTraceStats computes a task's weighted cost/latency percentiles over
// the traces bound to its implementations, time-decayed by half_life_hours
// (spec.md §4.G).
func (s *Server) taskTraceStats(ctx context.Context, taskID string, percentile, halfLifeHours float64, now time.Time) (costPct, latencyPct *float64, lastActivity *time.Time, err error) {
	traces, err := s.client.Trace.Query().
		Where(trace.HasImplementationWith(implementation.HasTaskWith(task.ID(taskID)))).
		All(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(traces) == 0 {
		return nil, nil, nil, nil
	}

	costs := make([]float64, 0, len(traces))
	costWeights := make([]float64, 0, len(traces))
	latencies := make([]float64, 0, len(traces))
	latencyWeights := make([]float64, 0, len(traces))
	latest := traces[0].CreatedAt

	for _, t := range traces {
		if t.CreatedAt.After(latest) {
			latest = t.CreatedAt
		}
		weight := pricing.TimeDecayWeight(t.CreatedAt, now, halfLifeHours)
		if cost := pricing.CalculateCost(t.Model, t.PromptTokens, t.CompletionTokens, t.CachedTokens); cost != nil {
			costs = append(costs, *cost)
			costWeights = append(costWeights, weight)
		}
		latencies = append(latencies, float64(t.CompletedAt.Sub(t.StartedAt).Milliseconds()))
		latencyWeights = append(latencyWeights, weight)
	}

	lastActivity = &latest

	if len(costs) > 0 {
		if v, err := pricing.WeightedPercentile(costs, costWeights, percentile); err == nil {
			costPct = &v
		}
	}
	if len(latencies) > 0 {
		if v, err := pricing.WeightedPercentile(latencies, latencyWeights, percentile); err == nil {
			latencyPct = &v
		}
	}

	return costPct, latencyPct, lastActivity, nil
}

func queryFloat(c *gin.Context, key string, fallback float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// GetTask handles GET /v1/tasks/:id.
func (s *Server) GetTask(c *gin.Context) {
	id := c.Param("id")
	found, err := s.client.Task.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}
