package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiParser_ClaimsGoogleapisHostOnly(t *testing.T) {
	p := NewGeminiParser()
	assert.True(t, p.Claims("https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent"))
	assert.False(t, p.Claims("https://api.openai.com/v1/chat/completions"))
}

func TestGeminiParser_ParsesSystemInstructionAndFunctionCall(t *testing.T) {
	p := NewGeminiParser()
	req := []byte(`{
		"systemInstruction": {"parts": [{"text": "be terse"}]},
		"contents": [{"role": "user", "parts": [{"text": "weather in nyc?"}]}],
		"generationConfig": {"temperature": 0.4, "maxOutputTokens": 200},
		"tools": [{"functionDeclarations": [{"name": "get_weather"}]}]
	}`)
	resp := []byte(`{
		"candidates": [{
			"content": {"parts": [{"functionCall": {"name": "get_weather", "args": {"city": "nyc"}}}]}
		}],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 6, "totalTokenCount": 18}
	}`)

	trace, err := p.Parse(Input{RequestBytes: req, ResponseBytes: resp, Metadata: map[string]interface{}{"model": "gemini-1.5-pro"}})
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", trace.Model)
	require.NotNil(t, trace.Temperature)
	assert.InDelta(t, 0.4, *trace.Temperature, 1e-9)
	require.NotNil(t, trace.MaxTokens)
	assert.Equal(t, 200, *trace.MaxTokens)
	require.Len(t, trace.InputItems, 2) // system instruction + user content
	assert.True(t, trace.InputItems.HasSystemPrompt())
	require.Len(t, trace.OutputItems, 1)
	assert.Equal(t, 12, trace.Usage.PromptTokens)
	assert.Equal(t, 6, trace.Usage.CompletionTokens)
	assert.Equal(t, 18, trace.Usage.TotalTokens)
}

func TestGeminiParser_ReconstructsStreamFromChunkedCandidates(t *testing.T) {
	p := NewGeminiParser()
	req := []byte(`{"contents": [{"role": "user", "parts": [{"text": "hi"}]}]}`)
	transcript := []byte(
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n" +
			"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]}}],\"usageMetadata\":{\"promptTokenCount\":2,\"candidatesTokenCount\":1}}\n\n",
	)

	trace, err := p.Parse(Input{
		RequestBytes:      req,
		IsStreaming:       true,
		StreamingResponse: transcript,
		Metadata:          map[string]interface{}{"model": "gemini-1.5-flash"},
	})
	require.NoError(t, err)
	require.Len(t, trace.OutputItems, 1)
	assert.Equal(t, 2, trace.Usage.PromptTokens)
	assert.Nil(t, trace.Error)
}

func TestGeminiParser_EmptyStreamRecordsError(t *testing.T) {
	p := NewGeminiParser()
	req := []byte(`{"contents": [{"role": "user", "parts": [{"text": "hi"}]}]}`)
	trace, err := p.Parse(Input{RequestBytes: req, IsStreaming: true, StreamingResponse: []byte("data: {}\n\n")})
	require.NoError(t, err)
	require.NotNil(t, trace.Error)
}
