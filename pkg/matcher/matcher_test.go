package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_SimpleLiteral(t *testing.T) {
	res := Match("Hello world", "Hello world")
	require.True(t, res.Matched)
	assert.Empty(t, res.Variables)
}

func TestMatch_SinglePlaceholder(t *testing.T) {
	res := Match("Hello {{name}}!", "Hello Bob!")
	require.True(t, res.Matched)
	assert.Equal(t, "Bob", res.Variables["name"])
}

func TestMatch_MultiplePlaceholders(t *testing.T) {
	res := Match("From {{city}} to {{dest}} in {{days}} days", "From Austin to Denver in 3 days")
	require.True(t, res.Matched)
	assert.Equal(t, "Austin", res.Variables["city"])
	assert.Equal(t, "Denver", res.Variables["dest"])
	assert.Equal(t, "3", res.Variables["days"])
}

func TestMatch_LiteralNotFound(t *testing.T) {
	res := Match("Hello {{name}}, goodbye", "Hello Bob")
	assert.False(t, res.Matched)
}

func TestMatch_EmptyTemplate(t *testing.T) {
	assert.True(t, Match("", "").Matched)
	assert.False(t, Match("", "x").Matched)
}

func TestMatch_RegexMetacharactersEscaped(t *testing.T) {
	res := Match("Price: $5.00 ({{currency}})", "Price: $5.00 (USD)")
	require.True(t, res.Matched)
	assert.Equal(t, "USD", res.Variables["currency"])
}

func TestMatch_AdjacentPlaceholdersNoFollowingLiteral(t *testing.T) {
	res := Match("{{a}}{{b}}", "xy")
	require.True(t, res.Matched)
	assert.Equal(t, "", res.Variables["a"])
	assert.Equal(t, "xy", res.Variables["b"])
}

func TestMatch_MultilineLiteral(t *testing.T) {
	res := Match("line one\n{{body}}\nline three", "line one\nmiddle stuff\nline three")
	require.True(t, res.Matched)
	assert.Equal(t, "middle stuff", res.Variables["body"])
}
