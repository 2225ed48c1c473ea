package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent/testcase"
)

// CreateTestCase handles POST /test-cases/tasks/:task_id/test-cases.
func (s *Server) CreateTestCase(c *gin.Context) {
	taskID := c.Param("task_id")
	var body createTestCaseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	builder := s.client.TestCase.Create().
		SetID(uuid.New().String()).
		SetTaskID(taskID)
	if body.Description != nil {
		builder.SetDescription(*body.Description)
	}
	if body.Arguments != nil {
		builder.SetArguments(body.Arguments)
	}
	if body.ExpectedOutput != nil {
		builder.SetExpectedOutput(body.ExpectedOutput)
	}

	created, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListTestCases handles GET /test-cases/tasks/:task_id/test-cases.
func (s *Server) ListTestCases(c *gin.Context) {
	taskID := c.Param("task_id")
	cases, err := s.client.TestCase.Query().Where(testcase.TaskID(taskID)).All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cases)
}

// UpdateTestCase handles PATCH /test-cases/tasks/:task_id/test-cases/:id.
func (s *Server) UpdateTestCase(c *gin.Context) {
	id := c.Param("id")
	var body updateTestCaseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	builder := s.client.TestCase.UpdateOneID(id)
	if body.Description != nil {
		builder.SetDescription(*body.Description)
	}
	if body.Arguments != nil {
		builder.SetArguments(body.Arguments)
	}
	if body.ExpectedOutput != nil {
		builder.SetExpectedOutput(body.ExpectedOutput)
	}

	updated, err := builder.Save(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTestCase handles DELETE /test-cases/tasks/:task_id/test-cases/:id.
func (s *Server) DeleteTestCase(c *gin.Context) {
	id := c.Param("id")
	if err := s.client.TestCase.DeleteOneID(id).Exec(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
