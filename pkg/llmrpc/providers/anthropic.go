package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API via the official SDK.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds a provider bound to apiKey.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Execute implements Provider.
func (p *AnthropicProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	maxTokens := int64(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	out := &Response{
		FinishReason:     string(msg.StopReason),
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		CachedTokens:     int(msg.Usage.CacheReadInputTokens),
	}
	out.TotalTokens = out.PromptTokens + out.CompletionTokens

	var textParts []string
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts = append(textParts, variant.Text)
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(variant.Input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID: variant.ID, Name: variant.Name, Arguments: string(args),
			})
		}
	}
	if len(textParts) > 0 {
		joined := textParts[0]
		for _, t := range textParts[1:] {
			joined += "\n" + t
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
