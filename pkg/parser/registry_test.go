package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DispatchesToClaimingParser(t *testing.T) {
	r := Default()
	trace := r.Parse(Input{
		URL:          "https://api.openai.com/v1/chat/completions",
		RequestBytes: []byte(`{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`),
		StartedAt:    time.Now(),
		CompletedAt:  time.Now(),
	})
	require.NotNil(t, trace)
	assert.Equal(t, "gpt-4o-mini", trace.Model)
	assert.Nil(t, trace.Error)
}

func TestRegistry_FallsBackToGenericTraceForUnclaimedHost(t *testing.T) {
	r := Default()
	trace := r.Parse(Input{
		URL:         "https://example.com/v1/whatever",
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
	})
	require.NotNil(t, trace)
	assert.Empty(t, trace.Model)
	assert.Nil(t, trace.Error)
}

func TestRegistry_RecordsInputErrorOnFallback(t *testing.T) {
	r := Default()
	trace := r.Parse(Input{
		URL: "https://example.com/v1/whatever",
		Err: errors.New("upstream timeout"),
	})
	require.NotNil(t, trace)
	require.NotNil(t, trace.Error)
	assert.Equal(t, "upstream timeout", *trace.Error)
}

func TestRegistry_CapturesProjectIDFromMetadata(t *testing.T) {
	r := Default()
	trace := r.Parse(Input{
		URL:      "https://example.com/v1/whatever",
		Metadata: map[string]interface{}{"project": "proj_1"},
	})
	assert.Equal(t, "proj_1", trace.ProjectID)
}
