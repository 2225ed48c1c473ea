package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent/grade"
	"github.com/traceforge/tracepilot/ent/grader"
)

// CreateGrader handles POST /v1/graders.
func (s *Server) CreateGrader(c *gin.Context) {
	var body createGraderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	projectID := body.ProjectID
	if projectID == "" {
		projectID = c.Query("project_id")
	}
	if projectID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "project_id is required"})
		return
	}

	builder := s.client.Grader.Create().
		SetID(uuid.New().String()).
		SetProjectID(projectID).
		SetName(body.Name).
		SetPrompt(body.Prompt).
		SetScoreType(grader.ScoreType(body.ScoreType)).
		SetModel(body.Model)
	if body.Temperature != nil {
		builder.SetTemperature(*body.Temperature)
	}
	if body.Reasoning != nil {
		builder.SetReasoning(body.Reasoning)
	}
	if body.ResponseSchema != nil {
		builder.SetResponseSchema(body.ResponseSchema)
	}
	if body.MaxOutputTokens != nil {
		builder.SetMaxOutputTokens(*body.MaxOutputTokens)
	}
	if body.IsActive != nil {
		builder.SetIsActive(*body.IsActive)
	}

	created, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListGraders handles GET /v1/graders[?project_id=...], augmenting each row
// with its grade count.
func (s *Server) ListGraders(c *gin.Context) {
	query := s.client.Grader.Query()
	if projectID := c.Query("project_id"); projectID != "" {
		query = query.Where(grader.ProjectID(projectID))
	}

	graders, err := query.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]graderListItem, 0, len(graders))
	for _, g := range graders {
		count, err := s.client.Grade.Query().Where(grade.GraderID(g.ID)).Count(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		items = append(items, graderListItem{
			ID:         g.ID,
			ProjectID:  g.ProjectID,
			Name:       g.Name,
			ScoreType:  string(g.ScoreType),
			Model:      g.Model,
			IsActive:   g.IsActive,
			GradeCount: count,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GetGrader handles GET /v1/graders/:id.
func (s *Server) GetGrader(c *gin.Context) {
	id := c.Param("id")
	found, err := s.client.Grader.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// UpdateGrader handles PATCH /v1/graders/:id.
func (s *Server) UpdateGrader(c *gin.Context) {
	id := c.Param("id")
	var body updateGraderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	builder := s.client.Grader.UpdateOneID(id)
	if body.Name != nil {
		builder.SetName(*body.Name)
	}
	if body.Prompt != nil {
		builder.SetPrompt(*body.Prompt)
	}
	if body.Model != nil {
		builder.SetModel(*body.Model)
	}
	if body.Temperature != nil {
		builder.SetTemperature(*body.Temperature)
	}
	if body.ResponseSchema != nil {
		builder.SetResponseSchema(body.ResponseSchema)
	}
	if body.MaxOutputTokens != nil {
		builder.SetMaxOutputTokens(*body.MaxOutputTokens)
	}
	if body.IsActive != nil {
		builder.SetIsActive(*body.IsActive)
	}

	updated, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteGrader handles DELETE /v1/graders/:id. Cascades to the grader's
// grades per the schema's OnDelete annotation.
func (s *Server) DeleteGrader(c *gin.Context) {
	id := c.Param("id")
	if err := s.client.Grader.DeleteOneID(id).Exec(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
