package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSE_SplitsMultipleEventsOnBlankLine(t *testing.T) {
	transcript := []byte(
		"event: content_block_delta\n" +
			"data: {\"a\":1}\n\n" +
			"event: message_delta\n" +
			"data: {\"b\":2}\n\n",
	)
	events := parseSSE(transcript)
	require.Len(t, events, 2)
	assert.Equal(t, "content_block_delta", events[0].Event)
	assert.Equal(t, `{"a":1}`, events[0].Data)
	assert.Equal(t, "message_delta", events[1].Event)
	assert.Equal(t, `{"b":2}`, events[1].Data)
}

func TestParseSSE_JoinsMultilineData(t *testing.T) {
	transcript := []byte("data: line1\ndata: line2\n\n")
	events := parseSSE(transcript)
	require.Len(t, events, 1)
	assert.Equal(t, "line1\nline2", events[0].Data)
}

func TestParseSSE_SkipsDoneSentinel(t *testing.T) {
	transcript := []byte("data: {\"x\":1}\n\ndata: [DONE]\n\n")
	events := parseSSE(transcript)
	require.Len(t, events, 1)
	assert.Equal(t, `{"x":1}`, events[0].Data)
}

func TestParseSSE_EmptyTranscriptReturnsNoEvents(t *testing.T) {
	events := parseSSE([]byte(""))
	assert.Empty(t, events)
}
