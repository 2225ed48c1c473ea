package llmrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/traceforge/tracepilot/pkg/llmrpc/providers"
)

// Server fans an Execute RPC out to the configured vendor providers by
// provider prefix on the model name ("anthropic/…", "gemini/…"/"models/…",
// else OpenAI). It implements LLMServiceServer.
type Server struct {
	openai    providers.Provider
	anthropic providers.Provider
	gemini    providers.Provider
}

// NewServer builds a Server. Any provider left nil rejects requests routed
// to it with a clear error rather than panicking.
func NewServer(openaiProvider, anthropicProvider, geminiProvider providers.Provider) *Server {
	return &Server{openai: openaiProvider, anthropic: anthropicProvider, gemini: geminiProvider}
}

// Execute implements LLMServiceServer. Provider errors are encoded into
// the response's "error" field rather than returned as a gRPC error — the
// transport itself only fails on structural problems (bad payload,
// connection loss); a provider failure is a normal outcome the Executor
// must record on the ExecutionResult (spec.md §4.E: "does not raise").
func (s *Server) Execute(ctx context.Context, reqStruct *structpb.Struct) (*structpb.Struct, error) {
	var req providers.Request
	if err := structToRequest(reqStruct, &req); err != nil {
		return nil, fmt.Errorf("llmrpc: decode request: %w", err)
	}

	provider, providerErr := s.pick(req.Model)
	var resp *providers.Response
	var execErr error
	if providerErr != nil {
		execErr = providerErr
	} else {
		resp, execErr = provider.Execute(ctx, req)
	}

	out := map[string]interface{}{}
	if execErr != nil {
		out["error"] = execErr.Error()
	} else {
		out = responseToMap(resp)
	}
	return structpb.NewStruct(out)
}

func (s *Server) pick(model string) (providers.Provider, error) {
	normalized := strings.ToLower(model)
	switch {
	case strings.HasPrefix(normalized, "anthropic/") || strings.HasPrefix(normalized, "claude"):
		if s.anthropic == nil {
			return nil, fmt.Errorf("llmrpc: no anthropic provider configured")
		}
		return s.anthropic, nil
	case strings.HasPrefix(normalized, "gemini/") || strings.HasPrefix(normalized, "models/") || strings.HasPrefix(normalized, "gemini"):
		if s.gemini == nil {
			return nil, fmt.Errorf("llmrpc: no gemini provider configured")
		}
		return s.gemini, nil
	default:
		if s.openai == nil {
			return nil, fmt.Errorf("llmrpc: no openai provider configured")
		}
		return s.openai, nil
	}
}

func structToRequest(s *structpb.Struct, out *providers.Request) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func responseToMap(resp *providers.Response) map[string]interface{} {
	b, _ := json.Marshal(resp)
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	return m
}
