package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceforge/tracepilot/ent"
)

func newGrader(t *testing.T, router *gin.Engine, projectID string) string {
	t.Helper()
	rec := performRequest(router, http.MethodPost, "/v1/graders?project_id="+projectID, map[string]any{
		"name":       "accuracy",
		"prompt":     "Rate this response. {{context}}",
		"score_type": "FLOAT",
		"model":      "gpt-4o-mini",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ent.Grader
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &created))
	return created.ID
}

func newTrace(t *testing.T, router *gin.Engine, projectID string) string {
	t.Helper()
	rec := performRequest(router, http.MethodPost, "/traces", map[string]any{
		"project_id":   projectID,
		"model":        "gpt-4o-mini",
		"input_items":  []any{map[string]any{"type": "message", "role": "user", "content": "hi"}},
		"output_items": []any{map[string]any{"type": "message", "role": "assistant", "content": "hello"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ent.Trace
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &created))
	return created.ID
}

func TestCreateGrade_RequiresExactlyOneTarget(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	graderID := newGrader(t, router, projectID)

	rec := performRequest(router, http.MethodPost, "/v1/grades", map[string]any{
		"grader_id": graderID,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateGrade_RejectsBothTargetsSet(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	graderID := newGrader(t, router, projectID)
	traceID := newTrace(t, router, projectID)

	rec := performRequest(router, http.MethodPost, "/v1/grades", map[string]any{
		"grader_id":            graderID,
		"trace_id":             traceID,
		"execution_result_id":  "some-execution-result",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateGrade_PersistsAgainstTrace(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	graderID := newGrader(t, router, projectID)
	traceID := newTrace(t, router, projectID)

	rec := performRequest(router, http.MethodPost, "/v1/grades", map[string]any{
		"grader_id": graderID,
		"trace_id":  traceID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created ent.Grade
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &created))
	require.NotNil(t, created.TraceID)
	assert.Equal(t, traceID, *created.TraceID)
	assert.Nil(t, created.ExecutionResultID)
}

func TestListGrades_FiltersByTraceID(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	graderID := newGrader(t, router, projectID)
	traceA := newTrace(t, router, projectID)
	traceB := newTrace(t, router, projectID)

	performRequest(router, http.MethodPost, "/v1/grades", map[string]any{"grader_id": graderID, "trace_id": traceA})
	performRequest(router, http.MethodPost, "/v1/grades", map[string]any{"grader_id": graderID, "trace_id": traceB})

	rec := performRequest(router, http.MethodGet, "/v1/grades?trace_id="+traceA, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var grades []ent.Grade
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &grades))
	require.Len(t, grades, 1)
	require.NotNil(t, grades[0].TraceID)
	assert.Equal(t, traceA, *grades[0].TraceID)
}

func TestDeleteGrade_ReturnsNoContent(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	graderID := newGrader(t, router, projectID)
	traceID := newTrace(t, router, projectID)

	createRec := performRequest(router, http.MethodPost, "/v1/grades", map[string]any{"grader_id": graderID, "trace_id": traceID})
	var created ent.Grade
	require.NoError(t, decodeJSON(createRec.Body.Bytes(), &created))

	rec := performRequest(router, http.MethodDelete, "/v1/grades/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
