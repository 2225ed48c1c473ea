package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBucket(t *testing.T) {
	assert.Equal(t, "2xx", statusBucket(http.StatusOK))
	assert.Equal(t, "3xx", statusBucket(http.StatusMovedPermanently))
	assert.Equal(t, "4xx", statusBucket(http.StatusNotFound))
	assert.Equal(t, "5xx", statusBucket(http.StatusInternalServerError))
}

func TestSecurityHeaders_SetsHardeningHeaders(t *testing.T) {
	router := gin.New()
	router.Use(securityHeaders())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
}

func TestRecordMetrics_BucketsStatusAndFallsBackPathForUnmatchedRoutes(t *testing.T) {
	m := newTestMetrics()
	router := gin.New()
	router.Use(recordMetrics(m))
	router.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/abc", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestCounter.WithLabelValues(http.MethodGet, "/tasks/:id", "4xx")))

	unmatched := httptest.NewRecorder()
	missingReq := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	router.ServeHTTP(unmatched, missingReq)

	require.Equal(t, http.StatusNotFound, unmatched.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestCounter.WithLabelValues(http.MethodGet, "unmatched", "4xx")))
}
