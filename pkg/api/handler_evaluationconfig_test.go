package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceforge/tracepilot/ent"
)

func TestCreateEvaluationConfig_RejectsWeightsNotSummingToOne(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)

	rec := performRequest(router, http.MethodPost, "/v1/evaluations/tasks/"+taskID+"/config", map[string]any{
		"weight_quality": 0.5,
		"weight_cost":    0.5,
		"weight_time":    0.5,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateEvaluationConfig_AcceptsWeightsWithinTolerance(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)

	rec := performRequest(router, http.MethodPost, "/v1/evaluations/tasks/"+taskID+"/config", map[string]any{
		"weight_quality": 0.5,
		"weight_cost":    0.3,
		"weight_time":    0.205,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created ent.EvaluationConfig
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &created))
	assert.Equal(t, taskID, created.TaskID)
}

func TestGetEvaluationConfig_ReturnsCreatedConfig(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)

	performRequest(router, http.MethodPost, "/v1/evaluations/tasks/"+taskID+"/config", map[string]any{
		"weight_quality": 0.5,
		"weight_cost":    0.3,
		"weight_time":    0.2,
	})

	rec := performRequest(router, http.MethodGet, "/v1/evaluations/tasks/"+taskID+"/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg ent.EvaluationConfig
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 0.5, cfg.WeightQuality)
}

func TestUpdateEvaluationConfig_RejectsNewWeightsOutOfTolerance(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)

	performRequest(router, http.MethodPost, "/v1/evaluations/tasks/"+taskID+"/config", map[string]any{
		"weight_quality": 0.5,
		"weight_cost":    0.3,
		"weight_time":    0.2,
	})

	rec := performRequest(router, http.MethodPatch, "/v1/evaluations/tasks/"+taskID+"/config", map[string]any{
		"weight_quality": 0.9,
		"weight_cost":    0.9,
		"weight_time":    0.9,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateEvaluationConfig_UpdatesGraderIDs(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()
	projectID := newProject(t, s)
	taskID := newTask(t, s, projectID)
	graderID := newGrader(t, router, projectID)

	performRequest(router, http.MethodPost, "/v1/evaluations/tasks/"+taskID+"/config", map[string]any{
		"weight_quality": 0.5,
		"weight_cost":    0.3,
		"weight_time":    0.2,
	})

	rec := performRequest(router, http.MethodPatch, "/v1/evaluations/tasks/"+taskID+"/config", map[string]any{
		"weight_quality": 0.5,
		"weight_cost":    0.3,
		"weight_time":    0.2,
		"grader_ids":     []string{graderID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated ent.EvaluationConfig
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &updated))
	assert.Equal(t, []string{graderID}, updated.GraderIds)
}
