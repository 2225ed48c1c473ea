package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIParser_ClaimsOpenAIHostOnly(t *testing.T) {
	p := NewOpenAIParser()
	assert.True(t, p.Claims("https://api.openai.com/v1/chat/completions"))
	assert.False(t, p.Claims("https://api.anthropic.com/v1/messages"))
}

func TestOpenAIParser_ParsesChatCompletionsRequestResponse(t *testing.T) {
	p := NewOpenAIParser()
	req := []byte(`{
		"model": "gpt-4o-mini",
		"temperature": 0.2,
		"max_tokens": 256,
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "summarize this"}
		]
	}`)
	resp := []byte(`{
		"choices": [{
			"finish_reason": "stop",
			"message": {"role": "assistant", "content": "done"}
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
	}`)

	trace, err := p.Parse(Input{
		RequestBytes:  req,
		ResponseBytes: resp,
		StartedAt:     time.Now(),
		CompletedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", trace.Model)
	require.NotNil(t, trace.Temperature)
	assert.InDelta(t, 0.2, *trace.Temperature, 1e-9)
	require.NotNil(t, trace.MaxTokens)
	assert.Equal(t, 256, *trace.MaxTokens)
	require.Len(t, trace.InputItems, 2)
	assert.True(t, trace.InputItems.HasSystemPrompt())
	require.Len(t, trace.OutputItems, 1)
	require.NotNil(t, trace.FinishReason)
	assert.Equal(t, "stop", *trace.FinishReason)
	assert.Equal(t, 10, trace.Usage.PromptTokens)
	assert.Equal(t, 4, trace.Usage.CompletionTokens)
	assert.Equal(t, 14, trace.Usage.TotalTokens)
	assert.Nil(t, trace.Error)
}

func TestOpenAIParser_ParsesResponsesAPIShape(t *testing.T) {
	p := NewOpenAIParser()
	req := []byte(`{
		"model": "gpt-4.1",
		"input": [{"role": "user", "content": "hello"}]
	}`)
	resp := []byte(`{
		"output": [{
			"type": "message",
			"content": [{"text": "hi there"}]
		}],
		"usage": {"input_tokens": 5, "output_tokens": 3}
	}`)

	trace, err := p.Parse(Input{RequestBytes: req, ResponseBytes: resp})
	require.NoError(t, err)
	require.Len(t, trace.InputItems, 1)
	require.Len(t, trace.OutputItems, 1)
	out, ok := trace.OutputItems[0].(interface{ Pos() int })
	require.True(t, ok)
	assert.Equal(t, 0, out.Pos())
	assert.Equal(t, 5, trace.Usage.PromptTokens)
	assert.Equal(t, 3, trace.Usage.CompletionTokens)
}

func TestOpenAIParser_ReconstructsChatStreamFromSSE(t *testing.T) {
	p := NewOpenAIParser()
	req := []byte(`{"model": "gpt-4o-mini", "messages": [{"role": "user", "content": "hi"}], "stream": true}`)
	transcript := []byte(
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":2}}\n\n" +
			"data: [DONE]\n\n",
	)

	trace, err := p.Parse(Input{
		RequestBytes:      req,
		IsStreaming:       true,
		StreamingResponse: transcript,
	})
	require.NoError(t, err)
	require.Len(t, trace.OutputItems, 1)
	require.NotNil(t, trace.FinishReason)
	assert.Equal(t, "stop", *trace.FinishReason)
	assert.Equal(t, 3, trace.Usage.PromptTokens)
	assert.Nil(t, trace.Error)
}

func TestOpenAIParser_EmptyStreamRecordsError(t *testing.T) {
	p := NewOpenAIParser()
	req := []byte(`{"model": "gpt-4o-mini", "messages": [{"role": "user", "content": "hi"}], "stream": true}`)
	trace, err := p.Parse(Input{
		RequestBytes:      req,
		IsStreaming:       true,
		StreamingResponse: []byte("data: {}\n\n"),
	})
	require.NoError(t, err)
	require.NotNil(t, trace.Error)
}
