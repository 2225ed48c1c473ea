package models

import "time"

// Usage is the unified token accounting extracted by a parser, regardless
// of whether the provider reported prompt/completion or input/output
// naming (spec.md §4.A).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	ReasoningTokens  int
	TotalTokens      int
}

// ParsedTrace is the normalized record a Provider Parser (§4.A) produces
// from raw request/response bytes, before it is persisted as an ent Trace.
type ParsedTrace struct {
	ProjectID         string
	Model             string
	Path              *string
	InputItems        ItemList
	OutputItems       ItemList
	Tools             []interface{}
	ResponseSchema    map[string]interface{}
	Temperature       *float64
	MaxTokens         *int
	FinishReason      *string
	Usage             Usage
	SystemFingerprint *string
	StartedAt         time.Time
	CompletedAt       time.Time
	Error             *string
}

// HasSystemPrompt reports whether the input side carries a system message.
func (t *ParsedTrace) HasSystemPrompt() bool {
	return t.InputItems.HasSystemPrompt()
}
