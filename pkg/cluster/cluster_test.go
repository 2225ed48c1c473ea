package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestGroup_SeparatesNullAndConcretePaths(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", ProjectID: "p1", Path: nil, Model: "gpt-4o", HasSystemPrompt: true, FirstMessage: "hello"},
		{ID: "2", ProjectID: "p1", Path: strPtr("/v1/chat"), Model: "gpt-4o", HasSystemPrompt: true, FirstMessage: "hello"},
	}
	groups := Group(candidates)
	assert.Len(t, groups, 2)
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, JaccardSimilarity("a b c", "a b c"))
	assert.InDelta(t, 1.0/3.0, JaccardSimilarity("a b", "a c"), 0.01)
	assert.Equal(t, 1.0, JaccardSimilarity("", ""))
}

func TestEligible_RequiresMinClusterSizeAndSimilarity(t *testing.T) {
	group := []Candidate{
		{FirstMessage: "Summarize the following article about finance"},
		{FirstMessage: "Summarize the following article about sports"},
		{FirstMessage: "Summarize the following article about weather"},
	}
	qualified, ok := Eligible(group)
	require.True(t, ok)
	assert.Len(t, qualified, 3)

	dissimilar := []Candidate{
		{FirstMessage: "Summarize the following article about finance"},
		{FirstMessage: "Translate this sentence into French please"},
		{FirstMessage: "What is the capital of Mongolia"},
	}
	_, ok = Eligible(dissimilar)
	assert.False(t, ok)
}

func TestEligible_TooFewQualifying(t *testing.T) {
	group := []Candidate{
		{FirstMessage: "hi"},
		{FirstMessage: "yo"},
	}
	_, ok := Eligible(group)
	assert.False(t, ok)
}

func TestInfer_IdenticalTextsAcceptedWithZeroPlaceholders(t *testing.T) {
	result, ok := Infer(true, []string{"Summarize this please", "Summarize this please", "Summarize this please"})
	require.True(t, ok)
	assert.Equal(t, 0, result.PlaceholderCount)
	assert.Equal(t, "Summarize this please", result.Template)
}

func TestInfer_VaryingSpanCollapsesToPlaceholder(t *testing.T) {
	result, ok := Infer(true, []string{
		"Summarize the article about finance for me",
		"Summarize the article about sports for me",
		"Summarize the article about weather for me",
	})
	require.True(t, ok)
	assert.GreaterOrEqual(t, result.PlaceholderCount, 1)
	assert.Contains(t, result.Template, "{{var_0}}")
}

func TestInfer_SkippedWithoutSystemPrompt(t *testing.T) {
	_, ok := Infer(false, []string{"a", "b", "c"})
	assert.False(t, ok)
}
