package llmrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPrompt_Substitutes(t *testing.T) {
	rendered, err := RenderPrompt("You are a {{role}} assistant for {{company}}.", map[string]string{
		"role": "support", "company": "Acme",
	})
	require.NoError(t, err)
	assert.Equal(t, "You are a support assistant for Acme.", rendered)
}

func TestRenderPrompt_MissingVariable(t *testing.T) {
	_, err := RenderPrompt("Hello {{name}}", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing variable name")
}

func TestRenderPrompt_NoPlaceholders(t *testing.T) {
	rendered, err := RenderPrompt("static prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "static prompt", rendered)
}
