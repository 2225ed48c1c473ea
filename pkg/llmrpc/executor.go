// Package llmrpc also hosts the LLM Executor (spec.md §4.E): rendering an
// Implementation's prompt template against supplied variables, invoking
// the configured LLM transport, and normalizing the result (including
// populating cost via the Pricing kit) into an ExecutionResult DTO ready
// for persistence by the evaluation orchestrator.
package llmrpc

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/traceforge/tracepilot/pkg/llmrpc/providers"
	"github.com/traceforge/tracepilot/pkg/models"
	"github.com/traceforge/tracepilot/pkg/pricing"
)

var templateVarRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderPrompt substitutes every `{{k}}` in prompt with variables[k]. If a
// referenced variable is missing, it returns an error naming the missing
// key and the caller must not invoke the LLM (spec.md §4.E).
func RenderPrompt(prompt string, variables map[string]string) (string, error) {
	var missing string
	rendered := templateVarRe.ReplaceAllStringFunc(prompt, func(match string) string {
		sub := templateVarRe.FindStringSubmatch(match)
		key := sub[1]
		if v, ok := variables[key]; ok {
			return v
		}
		if missing == "" {
			missing = key
		}
		return match
	})
	if missing != "" {
		return "", fmt.Errorf("missing variable %s", missing)
	}
	return rendered, nil
}

// ImplementationSpec is everything the Executor needs about an
// Implementation, decoupled from the ent type so this package doesn't
// import ent directly.
type ImplementationSpec struct {
	Prompt          string
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	Tools           []interface{}
	ToolChoice      interface{}
	ResponseSchema  map[string]interface{}
}

// ExecutionOutcome is the Executor's result DTO, mapped 1:1 onto
// ent.ExecutionResult's mutable/output fields by the caller.
type ExecutionOutcome struct {
	PromptRendered   string
	StartedAt        time.Time
	CompletedAt      time.Time
	ResultText       *string
	ResultJSON       map[string]interface{}
	ToolCalls        []interface{}
	Error            *string
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	ReasoningTokens  int
	TotalTokens      int
	Cost             *float64
}

// Executor implements `execute(impl, variables?, input?) → ExecutionResult`.
type Executor struct {
	client LLMServiceClient
}

// NewExecutor builds an Executor over a gRPC connection to the LLM
// transport (typically a plaintext TCP connection to the Server running in
// the same process, see conn.go).
func NewExecutor(conn grpc.ClientConnInterface) *Executor {
	return &Executor{client: NewLLMServiceClient(conn)}
}

// Execute renders the implementation's prompt, invokes the LLM, and
// returns the normalized outcome. It has no Go error return: every failure
// (a missing prompt variable, request encoding, transport, or provider
// error) is recorded in outcome.Error.
func (e *Executor) Execute(ctx context.Context, impl ImplementationSpec, variables map[string]string, input models.ItemList) *ExecutionOutcome {
	started := time.Now()

	rendered, err := RenderPrompt(impl.Prompt, variables)
	if err != nil {
		msg := err.Error()
		return &ExecutionOutcome{
			PromptRendered: impl.Prompt,
			StartedAt:      started,
			CompletedAt:    time.Now(),
			Error:          &msg,
		}
	}

	req := providers.Request{
		Model:           impl.Model,
		System:          rendered,
		Messages:        itemsToMessages(input),
		Temperature:     impl.Temperature,
		MaxOutputTokens: impl.MaxOutputTokens,
		Tools:           impl.Tools,
		ToolChoice:      impl.ToolChoice,
		ResponseSchema:  impl.ResponseSchema,
	}

	reqMap, err := requestToMap(req)
	if err != nil {
		msg := err.Error()
		return &ExecutionOutcome{PromptRendered: rendered, StartedAt: started, CompletedAt: time.Now(), Error: &msg}
	}
	reqStruct, err := structpb.NewStruct(reqMap)
	if err != nil {
		msg := err.Error()
		return &ExecutionOutcome{PromptRendered: rendered, StartedAt: started, CompletedAt: time.Now(), Error: &msg}
	}

	respStruct, err := e.client.Execute(ctx, reqStruct)
	completed := time.Now()
	if err != nil {
		msg := err.Error()
		return &ExecutionOutcome{PromptRendered: rendered, StartedAt: started, CompletedAt: completed, Error: &msg}
	}

	respMap := respStruct.AsMap()
	if errMsg, ok := respMap["error"].(string); ok && errMsg != "" {
		return &ExecutionOutcome{PromptRendered: rendered, StartedAt: started, CompletedAt: completed, Error: &errMsg}
	}

	outcome := &ExecutionOutcome{
		PromptRendered: rendered,
		StartedAt:      started,
		CompletedAt:    completed,
	}
	if text, ok := respMap["ResultText"].(string); ok && text != "" {
		outcome.ResultText = &text
	}
	if rj, ok := respMap["ResultJSON"].(map[string]interface{}); ok {
		outcome.ResultJSON = rj
	}
	if tcs, ok := respMap["ToolCalls"].([]interface{}); ok {
		outcome.ToolCalls = tcs
	}
	outcome.PromptTokens = intField(respMap, "PromptTokens")
	outcome.CompletionTokens = intField(respMap, "CompletionTokens")
	outcome.CachedTokens = intField(respMap, "CachedTokens")
	outcome.ReasoningTokens = intField(respMap, "ReasoningTokens")
	outcome.TotalTokens = intField(respMap, "TotalTokens")

	if outcome.PromptTokens > 0 || outcome.CompletionTokens > 0 {
		outcome.Cost = pricing.CalculateCost(impl.Model, outcome.PromptTokens, outcome.CompletionTokens, outcome.CachedTokens)
	}

	return outcome
}

func intField(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func itemsToMessages(items models.ItemList) []providers.Message {
	out := make([]providers.Message, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case models.MessageItem:
			if v.Role == "system" {
				continue // folded into the rendered prompt already
			}
			out = append(out, providers.Message{Role: v.Role, Content: v.Content})
		case models.ToolResultItem:
			out = append(out, providers.Message{Role: "tool", Content: v.Result})
		}
	}
	return out
}

func requestToMap(req providers.Request) (map[string]interface{}, error) {
	m := map[string]interface{}{
		"Model":           req.Model,
		"System":          req.System,
		"MaxOutputTokens": req.MaxOutputTokens,
	}
	msgs := make([]interface{}, len(req.Messages))
	for i, msg := range req.Messages {
		msgs[i] = map[string]interface{}{"Role": msg.Role, "Content": msg.Content}
	}
	m["Messages"] = msgs
	if req.Temperature != nil {
		m["Temperature"] = *req.Temperature
	}
	if req.Tools != nil {
		m["Tools"] = req.Tools
	}
	if req.ToolChoice != nil {
		m["ToolChoice"] = req.ToolChoice
	}
	if req.ResponseSchema != nil {
		m["ResponseSchema"] = req.ResponseSchema
	}
	return m, nil
}
