package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider calls the Google Generative Language API via the
// google.golang.org/genai SDK.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider builds a provider bound to apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Execute implements Provider.
func (p *GeminiProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: empty candidates")
	}
	cand := resp.Candidates[0]

	out := &Response{
		FinishReason: string(cand.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.CachedTokens = int(resp.UsageMetadata.CachedContentTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	var textParts []string
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				out.ToolCalls = append(out.ToolCalls, ToolCall{
					Name: part.FunctionCall.Name, Arguments: string(args),
				})
			}
		}
	}
	if len(textParts) > 0 {
		joined := textParts[0]
		for _, t := range textParts[1:] {
			joined += t
		}
		out.ResultText = joined
		if req.ResponseSchema != nil {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(joined), &parsed); err == nil {
				out.ResultJSON = parsed
			}
		}
	}
	return out, nil
}
