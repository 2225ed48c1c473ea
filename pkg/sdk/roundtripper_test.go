package sdk

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTracer_CapturesRequestAndResponseBytes(t *testing.T) {
	upstream := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, `{"model":"gpt-4o"}`, string(body))
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"ok":true}`))),
		}, nil
	})

	exporter := NewExporter("http://unused", WithDrainInterval(time.Hour))
	tracer := NewTracer(upstream, exporter, "proj-1")

	req := httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader([]byte(`{"model":"gpt-4o"}`)))
	resp, err := tracer.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(respBody))

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.queue, 1)
	queued := exporter.queue[0]
	require.Equal(t, "proj-1", queued.ProjectID)
	require.Equal(t, `{"model":"gpt-4o"}`, string(queued.Request))
	require.Equal(t, `{"ok":true}`, string(queued.Response))
	require.False(t, queued.IsStreaming)
}

func TestTracer_DetectsEventStreamAsStreamingResponse(t *testing.T) {
	upstream := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(bytes.NewReader([]byte("data: [DONE]\n\n"))),
		}, nil
	})

	exporter := NewExporter("http://unused", WithDrainInterval(time.Hour))
	tracer := NewTracer(upstream, exporter, "proj-1")

	req := httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
	_, err := tracer.RoundTrip(req)
	require.NoError(t, err)

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.queue, 1)
	require.True(t, exporter.queue[0].IsStreaming)
	require.Equal(t, "data: [DONE]\n\n", string(exporter.queue[0].StreamingResponse))
}

func TestTracer_RecordsErrorFromUpstream(t *testing.T) {
	upstream := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})

	exporter := NewExporter("http://unused", WithDrainInterval(time.Hour))
	tracer := NewTracer(upstream, exporter, "proj-1")

	req := httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
	_, err := tracer.RoundTrip(req)
	require.Error(t, err)

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.queue, 1)
	require.NotEmpty(t, exporter.queue[0].Error)
}
