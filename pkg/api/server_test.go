package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/traceforge/tracepilot/pkg/metrics"
	testdatabase "github.com/traceforge/tracepilot/test/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestMetrics builds a *metrics.Metrics with unregistered vectors, so
// parallel test files in this package can each build their own Server
// without panicking on duplicate Prometheus registration.
func newTestMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		HTTPRequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_http_requests_total"}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_http_duration_seconds"}, []string{"method", "path", "status_code"}),
		TracesIngested:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_traces_ingested_total"}, []string{"outcome"}),
	}
}

// newTestServer builds a Server with a real Postgres-backed ent client for
// handlers that only touch the database directly (tasks, test cases,
// graders, grades, evaluation config). The executor, orchestrators and
// other collaborators are nil here, so handlers that need them are not
// exercised by this package's tests.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	client := testdatabase.NewTestClient(t)
	return NewServer(client.Client, client.DB(), nil, nil, nil, nil, nil, newTestMetrics())
}

func newProject(t *testing.T, s *Server) string {
	t.Helper()
	id := uuid.New().String()
	p, err := s.client.Project.Create().SetID(id).SetName(t.Name()).Save(context.Background())
	require.NoError(t, err)
	return p.ID
}

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
