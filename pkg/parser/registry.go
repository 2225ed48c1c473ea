// Package parser implements the Provider Parser Registry (spec.md §4.A):
// decoding raw HTTP trace bytes into normalized models.ParsedTrace records,
// dispatching by URL host, with a generic fallback for unrecognized hosts.
package parser

import (
	"net/url"
	"strings"
	"time"

	"github.com/traceforge/tracepilot/pkg/models"
)

// Input is everything a Parser needs to decode one captured HTTP call.
type Input struct {
	URL               string
	Method            string
	RequestBytes      []byte
	ResponseBytes     []byte
	StartedAt         time.Time
	CompletedAt       time.Time
	Err               error
	Metadata          map[string]interface{}
	Path              *string
	IsStreaming       bool
	StreamingResponse []byte
}

// Parser decodes one provider's wire format into a normalized trace.
// Claims(url) must be cheap and side-effect-free; the registry calls it for
// every registered parser in order until one returns true.
type Parser interface {
	Name() string
	Claims(rawURL string) bool
	Parse(in Input) (*models.ParsedTrace, error)
}

// Registry tries parsers in registration order; the first to claim a URL
// wins. If none claim it, Parse falls back to recording timing and raw
// bytes only.
type Registry struct {
	parsers []Parser
}

// NewRegistry builds a registry with the given parsers, tried in order.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Default returns a registry with the built-in OpenAI-family, Anthropic,
// and Gemini parsers registered, in that order — matching the claim-host
// list spec.md §4.A names (openai.com, anthropic.com, googleapis.com).
func Default() *Registry {
	return NewRegistry(
		NewOpenAIParser(),
		NewAnthropicParser(),
		NewGeminiParser(),
	)
}

// Parse dispatches to the first parser that claims in.URL, or the generic
// fallback if none do. Parser failures (malformed JSON, etc.) surface as an
// error on the returned trace via Error, never as a returned Go error —
// a parser failure must not abort ingest (spec.md §7 ParserFailed).
func (r *Registry) Parse(in Input) *models.ParsedTrace {
	host := hostOf(in.URL)
	for _, p := range r.parsers {
		if p.Claims(in.URL) {
			trace, err := p.Parse(in)
			if err != nil {
				return fallbackTrace(in, err.Error())
			}
			return trace
		}
	}
	_ = host
	return fallbackTrace(in, "")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// fallbackTrace records only timing and raw bytes, per spec.md §4.A's
// generic fallback for unclaimed hosts, and for any claimed parser that
// itself failed.
func fallbackTrace(in Input, parseErr string) *models.ParsedTrace {
	t := &models.ParsedTrace{
		Path:        in.Path,
		StartedAt:   in.StartedAt,
		CompletedAt: in.CompletedAt,
	}
	if in.Err != nil {
		msg := in.Err.Error()
		t.Error = &msg
	} else if parseErr != "" {
		t.Error = &parseErr
	}
	if pid, ok := in.Metadata["project"].(string); ok {
		t.ProjectID = pid
	}
	return t
}

func hostHasSuffix(rawURL, suffix string) bool {
	return strings.HasSuffix(hostOf(rawURL), suffix)
}
