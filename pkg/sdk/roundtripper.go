package sdk

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"
)

// Tracer wraps an http.RoundTripper, capturing the raw request/response
// bytes and headers around every call and enqueueing them on an Exporter.
// Installing it on the SDK's http.Client is the entire client-side
// integration: callers make LLM requests exactly as before.
type Tracer struct {
	Next      http.RoundTripper
	Exporter  *Exporter
	ProjectID string
}

// NewTracer wraps next (http.DefaultTransport if nil) with tracing that
// reports to exporter under projectID.
func NewTracer(next http.RoundTripper, exporter *Exporter, projectID string) *Tracer {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Tracer{Next: next, Exporter: exporter, ProjectID: projectID}
}

// RoundTrip implements http.RoundTripper.
func (t *Tracer) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	started := time.Now()
	resp, err := t.Next.RoundTrip(req)
	completed := time.Now()

	trace := HTTPTracePayload{
		ProjectID:      t.ProjectID,
		URL:            req.URL.String(),
		Method:         req.Method,
		StartedAt:      started,
		CompletedAt:    completed,
		Request:        reqBody,
		RequestHeaders: flattenHeader(req.Header),
		Metadata:       map[string]any{"project": t.ProjectID},
	}

	if err != nil {
		trace.Error = err.Error()
		t.Exporter.Enqueue(trace)
		return resp, err
	}

	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		trace.Error = readErr.Error()
		t.Exporter.Enqueue(trace)
		return resp, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	trace.StatusCode = resp.StatusCode
	trace.ResponseHeaders = flattenHeader(resp.Header)
	if isEventStream(resp.Header) {
		trace.IsStreaming = true
		trace.StreamingResponse = respBody
	} else {
		trace.Response = respBody
	}

	t.Exporter.Enqueue(trace)
	return resp, nil
}

func isEventStream(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Content-Type")), "text/event-stream")
}

// flattenHeader joins multi-value headers with ", " the way net/http
// renders them on the wire, matching what the server-side parser expects.
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
