package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/pkg/llmrpc"
	"github.com/traceforge/tracepilot/pkg/models"
)

// ExecuteImplementation handles POST /executions/implementations/:id/execute
// — a single ad hoc invocation of an existing Implementation, persisted as
// an ExecutionResult (spec.md §4.E).
func (s *Server) ExecuteImplementation(c *gin.Context) {
	id := c.Param("id")
	var body executeImplementationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	impl, err := s.client.Implementation.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.runAndPersist(c, impl, body.Variables)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ExecuteTaskOverride handles POST /executions/tasks/:id/execute — runs a
// one-off variant of the task's production implementation without
// persisting it as a user-visible Implementation, by creating a temp=true
// Implementation whose version ends "-temp" (spec.md §6).
func (s *Server) ExecuteTaskOverride(c *gin.Context) {
	taskID := c.Param("id")
	var body executeTaskOverrideRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	task, err := s.client.Task.Get(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	if task.ProductionVersionID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task has no production implementation"})
		return
	}
	baseline, err := s.client.Implementation.Get(c.Request.Context(), *task.ProductionVersionID)
	if err != nil {
		respondError(c, err)
		return
	}

	tempImpl, err := s.persistTempOverride(c, baseline, body)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.runAndPersist(c, tempImpl, body.Variables)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) persistTempOverride(c *gin.Context, baseline *ent.Implementation, body executeTaskOverrideRequest) (*ent.Implementation, error) {
	builder := s.client.Implementation.Create().
		SetID(uuid.New().String()).
		SetTaskID(baseline.TaskID).
		SetVersion(fmt.Sprintf("%s-%s-temp", baseline.Version, uuid.New().String()[:8])).
		SetPrompt(baseline.Prompt).
		SetModel(baseline.Model).
		SetMaxOutputTokens(baseline.MaxOutputTokens).
		SetTemp(true)
	if baseline.Temperature != nil {
		builder.SetTemperature(*baseline.Temperature)
	}
	if baseline.Tools != nil {
		builder.SetTools(baseline.Tools)
	}
	if baseline.ToolChoice != nil {
		builder.SetToolChoice(baseline.ToolChoice)
	}
	if baseline.ResponseSchema != nil {
		builder.SetResponseSchema(baseline.ResponseSchema)
	}

	if body.Model != nil {
		builder.SetModel(*body.Model)
	}
	if body.Temperature != nil {
		builder.SetTemperature(*body.Temperature)
	}
	if body.MaxOutputTokens != nil {
		builder.SetMaxOutputTokens(*body.MaxOutputTokens)
	}

	return builder.Save(c.Request.Context())
}

// runAndPersist invokes the Executor against impl and persists the
// outcome as an ExecutionResult row not bound to any evaluation.
func (s *Server) runAndPersist(c *gin.Context, impl *ent.Implementation, variables map[string]string) (*ent.ExecutionResult, error) {
	spec := llmrpc.ImplementationSpec{
		Prompt:          impl.Prompt,
		Model:           impl.Model,
		Temperature:     impl.Temperature,
		MaxOutputTokens: impl.MaxOutputTokens,
		Tools:           impl.Tools,
		ToolChoice:      impl.ToolChoice,
		ResponseSchema:  impl.ResponseSchema,
	}
	outcome := s.executor.Execute(c.Request.Context(), spec, variables, models.ItemList{})

	builder := s.client.ExecutionResult.Create().
		SetID(uuid.New().String()).
		SetTaskID(impl.TaskID).
		SetImplementationID(impl.ID).
		SetStartedAt(outcome.StartedAt).
		SetCompletedAt(outcome.CompletedAt).
		SetPromptRendered(outcome.PromptRendered).
		SetVariables(variables).
		SetPromptTokens(outcome.PromptTokens).
		SetCompletionTokens(outcome.CompletionTokens).
		SetCachedTokens(outcome.CachedTokens).
		SetReasoningTokens(outcome.ReasoningTokens).
		SetTotalTokens(outcome.TotalTokens)
	if outcome.ResultText != nil {
		builder.SetResultText(*outcome.ResultText)
	}
	if outcome.ResultJSON != nil {
		builder.SetResultJSON(outcome.ResultJSON)
	}
	if outcome.ToolCalls != nil {
		builder.SetToolCalls(outcome.ToolCalls)
	}
	if outcome.Error != nil {
		builder.SetError(*outcome.Error)
	}

	saved, err := builder.Save(c.Request.Context())
	if err != nil {
		return nil, err
	}
	if outcome.Cost != nil {
		saved, err = s.client.ExecutionResult.UpdateOneID(saved.ID).SetCost(*outcome.Cost).Save(c.Request.Context())
		if err != nil {
			return nil, err
		}
	}
	return saved, nil
}
