package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traceforge/tracepilot/pkg/ingest"
)

// IngestHTTPTrace handles POST /http-traces (spec.md §4.K, §6).
func (s *Server) IngestHTTPTrace(c *gin.Context) {
	var body httpTracePayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	startedAt, err := time.Parse(time.RFC3339Nano, body.StartedAt)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "started_at: " + err.Error()})
		return
	}
	completedAt, err := time.Parse(time.RFC3339Nano, body.CompletedAt)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "completed_at: " + err.Error()})
		return
	}

	outcome, err := s.ingest.Ingest(c.Request.Context(), ingest.RawHTTPTrace{
		ProjectID:         body.ProjectID,
		URL:               body.URL,
		Method:            body.Method,
		StartedAt:         startedAt,
		CompletedAt:       completedAt,
		StatusCode:        body.StatusCode,
		Error:             body.Error,
		Request:           body.Request,
		RequestHeaders:    body.RequestHeaders,
		Response:          body.Response,
		ResponseHeaders:   body.ResponseHeaders,
		Metadata:          body.Metadata,
		IsStreaming:       body.IsStreaming,
		StreamingResponse: body.StreamingResponse,
		ImplementationID:  body.ImplementationID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if outcome.Deduped {
		s.metrics.RecordIngest("deduped")
	} else {
		s.metrics.RecordIngest("persisted")
	}

	c.JSON(http.StatusCreated, ingestResponse{
		ID:      outcome.HTTPTraceID,
		TraceID: outcome.TraceID,
		Deduped: outcome.Deduped,
	})
}
