package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/ent/trace"
	"github.com/traceforge/tracepilot/pkg/models"
)

// CreateTrace handles POST /traces — a pre-parsed trace submitted directly,
// bypassing the Provider Parser Registry (spec.md §6 "pre-parsed form").
func (s *Server) CreateTrace(c *gin.Context) {
	var body createTraceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	inputItems, err := models.ItemListFromAny(body.InputItems)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "input_items: " + err.Error()})
		return
	}
	outputItems, err := models.ItemListFromAny(body.OutputItems)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "output_items: " + err.Error()})
		return
	}

	canonicalInput, err := inputItems.ToAnySlice()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "input_items: " + err.Error()})
		return
	}
	canonicalOutput, err := outputItems.ToAnySlice()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "output_items: " + err.Error()})
		return
	}

	now := time.Now()
	builder := s.client.Trace.Create().
		SetID(uuid.New().String()).
		SetProjectID(body.ProjectID).
		SetModel(body.Model).
		SetInputItems(canonicalInput).
		SetOutputItems(canonicalOutput).
		SetStartedAt(now).
		SetCompletedAt(now).
		SetPromptTokens(body.PromptTokens).
		SetCompletionTokens(body.CompletionTokens).
		SetCachedTokens(body.CachedTokens).
		SetReasoningTokens(body.ReasoningTokens).
		SetTotalTokens(body.TotalTokens)
	if body.HTTPTraceID != nil {
		builder.SetHTTPTraceID(*body.HTTPTraceID)
	}
	if body.Path != nil {
		builder.SetPath(*body.Path)
	}
	if body.Tools != nil {
		builder.SetTools(body.Tools)
	}
	if body.ResponseSchema != nil {
		builder.SetResponseSchema(body.ResponseSchema)
	}
	if body.Temperature != nil {
		builder.SetTemperature(*body.Temperature)
	}
	if body.MaxTokens != nil {
		builder.SetMaxTokens(*body.MaxTokens)
	}
	if body.FinishReason != nil {
		builder.SetFinishReason(*body.FinishReason)
	}
	if body.SystemFingerprint != nil {
		builder.SetSystemFingerprint(*body.SystemFingerprint)
	}
	if body.Error != nil {
		builder.SetError(*body.Error)
	}

	created, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListTraces handles GET /traces?project=....
func (s *Server) ListTraces(c *gin.Context) {
	projectID := c.Query("project")
	query := s.client.Trace.Query()
	if projectID != "" {
		query = query.Where(trace.ProjectID(projectID))
	}

	traces, err := query.Order(ent.Desc(trace.FieldCreatedAt)).All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, traces)
}

// GetTrace handles GET /traces/:id.
func (s *Server) GetTrace(c *gin.Context) {
	id := c.Param("id")
	found, err := s.client.Trace.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}
