package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traceforge/tracepilot/pkg/metrics"
)

// securityHeaders sets standard hardening response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// recordMetrics wraps every request with a tracepilot_http_request_duration_seconds
// observation and a tracepilot_http_requests_total increment.
func recordMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordHTTPRequest(c.Request.Method, path, statusBucket(status), time.Since(started).Seconds())
	}
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
