package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceforge/tracepilot/ent"
)

func newTask(t *testing.T, s *Server, projectID string) string {
	t.Helper()
	task, err := s.client.Task.Create().
		SetID(uuid.New().String()).
		SetProjectID(projectID).
		SetName(t.Name()).
		Save(context.Background())
	require.NoError(t, err)
	return task.ID
}

func TestCreateTestCase_Persists(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)

	rec := performRequest(router, http.MethodPost, "/test-cases/tasks/"+taskID+"/test-cases", map[string]any{
		"arguments":       map[string]any{"ticket": "my order is late"},
		"expected_output": []any{"apology and refund offer"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created ent.TestCase
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &created))
	assert.Equal(t, taskID, created.TaskID)
}

func TestListTestCases_ScopedToTask(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskA := newTask(t, s, projectID)
	taskB := newTask(t, s, projectID)

	performRequest(router, http.MethodPost, "/test-cases/tasks/"+taskA+"/test-cases", map[string]any{
		"arguments": map[string]any{"x": 1},
	})
	performRequest(router, http.MethodPost, "/test-cases/tasks/"+taskB+"/test-cases", map[string]any{
		"arguments": map[string]any{"y": 2},
	})

	rec := performRequest(router, http.MethodGet, "/test-cases/tasks/"+taskA+"/test-cases", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cases []ent.TestCase
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &cases))
	require.Len(t, cases, 1)
	assert.Equal(t, taskA, cases[0].TaskID)
}

func TestUpdateTestCase_AppliesPartialChange(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)

	createRec := performRequest(router, http.MethodPost, "/test-cases/tasks/"+taskID+"/test-cases", map[string]any{
		"arguments": map[string]any{"a": 1},
	})
	var created ent.TestCase
	require.NoError(t, decodeJSON(createRec.Body.Bytes(), &created))

	desc := "updated description"
	updateRec := performRequest(router, http.MethodPatch, "/test-cases/tasks/"+taskID+"/test-cases/"+created.ID, map[string]any{
		"description": desc,
	})
	require.Equal(t, http.StatusOK, updateRec.Code)

	var updated ent.TestCase
	require.NoError(t, decodeJSON(updateRec.Body.Bytes(), &updated))
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, updated.Arguments)
}

func TestDeleteTestCase_ReturnsNoContent(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)

	createRec := performRequest(router, http.MethodPost, "/test-cases/tasks/"+taskID+"/test-cases", map[string]any{
		"arguments": map[string]any{"a": 1},
	})
	var created ent.TestCase
	require.NoError(t, decodeJSON(createRec.Body.Bytes(), &created))

	rec := performRequest(router, http.MethodDelete, "/test-cases/tasks/"+taskID+"/test-cases/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
