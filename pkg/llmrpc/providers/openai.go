package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls the OpenAI Chat Completions API via the official
// community SDK.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider bound to apiKey.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// Execute implements Provider.
func (p *OpenAIProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxOutputTokens,
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := toOpenAITools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("openai provider: convert tools: %w", err)
		}
		chatReq.Tools = tools
	}
	if req.ResponseSchema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}
	choice := resp.Choices[0]

	out := &Response{
		ResultText:        choice.Message.Content,
		FinishReason:      string(choice.FinishReason),
		SystemFingerprint: resp.SystemFingerprint,
		PromptTokens:      resp.Usage.PromptTokens,
		CompletionTokens:  resp.Usage.CompletionTokens,
		TotalTokens:       resp.Usage.TotalTokens,
	}
	if resp.Usage.PromptTokensDetails != nil {
		out.CachedTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}
	if resp.Usage.CompletionTokensDetails != nil {
		out.ReasoningTokens = resp.Usage.CompletionTokensDetails.ReasoningTokens
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
		})
	}
	if req.ResponseSchema != nil && out.ResultText != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(out.ResultText), &parsed); err == nil {
			out.ResultJSON = parsed
		}
	}
	return out, nil
}

func toOpenAITools(raw []interface{}) ([]openai.Tool, error) {
	out := make([]openai.Tool, 0, len(raw))
	for _, t := range raw {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		var fn openai.FunctionDefinition
		if err := json.Unmarshal(b, &fn); err != nil {
			return nil, err
		}
		out = append(out, openai.Tool{Type: openai.ToolTypeFunction, Function: &fn})
	}
	return out, nil
}
