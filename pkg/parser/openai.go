package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/traceforge/tracepilot/pkg/models"
)

// OpenAIParser decodes the OpenAI-family wire formats: Chat Completions
// (request carries "messages") and the Responses API (request carries
// "input", no "messages"), including their streaming SSE variants
// (spec.md §4.A).
type OpenAIParser struct{}

// NewOpenAIParser constructs the OpenAI-family parser.
func NewOpenAIParser() *OpenAIParser { return &OpenAIParser{} }

// Name implements Parser.
func (p *OpenAIParser) Name() string { return "openai" }

// Claims implements Parser.
func (p *OpenAIParser) Claims(rawURL string) bool {
	return hostHasSuffix(rawURL, "openai.com")
}

// Parse implements Parser.
func (p *OpenAIParser) Parse(in Input) (*models.ParsedTrace, error) {
	var req map[string]interface{}
	if len(in.RequestBytes) > 0 {
		if err := json.Unmarshal(in.RequestBytes, &req); err != nil {
			return nil, fmt.Errorf("openai parser: decode request: %w", err)
		}
	}
	isResponses := req["input"] != nil && req["messages"] == nil

	var resp map[string]interface{}
	var streamErr string
	if in.IsStreaming {
		var err error
		resp, err = reconstructStream(in.StreamingResponse, isResponses)
		if err != nil {
			streamErr = err.Error()
		}
	} else if len(in.ResponseBytes) > 0 {
		if err := json.Unmarshal(in.ResponseBytes, &resp); err != nil {
			return nil, fmt.Errorf("openai parser: decode response: %w", err)
		}
	}

	trace := &models.ParsedTrace{
		Path:        in.Path,
		StartedAt:   in.StartedAt,
		CompletedAt: in.CompletedAt,
	}
	if pid, ok := in.Metadata["project"].(string); ok {
		trace.ProjectID = pid
	}
	if in.Err != nil {
		msg := in.Err.Error()
		trace.Error = &msg
	} else if streamErr != "" {
		trace.Error = &streamErr
	}

	if m, ok := req["model"].(string); ok {
		trace.Model = m
	}
	if t, ok := req["temperature"].(float64); ok {
		trace.Temperature = &t
	}
	if mt, ok := numField(req, "max_tokens", "max_completion_tokens", "max_output_tokens"); ok {
		v := int(mt)
		trace.MaxTokens = &v
	}
	if rs, ok := req["response_format"].(map[string]interface{}); ok {
		trace.ResponseSchema = rs
	}
	if tools, ok := req["tools"].([]interface{}); ok {
		trace.Tools = tools
	}

	if isResponses {
		trace.InputItems = parseResponsesInput(req["input"])
	} else {
		trace.InputItems = parseChatMessages(req["messages"])
	}

	if resp != nil {
		if isResponses {
			trace.OutputItems = parseResponsesOutput(resp["output"])
		} else {
			trace.OutputItems, trace.FinishReason = parseChatChoices(resp["choices"])
		}
		trace.Usage = unifyUsage(resp["usage"])
		if fp, ok := resp["system_fingerprint"].(string); ok {
			trace.SystemFingerprint = &fp
		}
	}

	if trace.Error == nil && in.IsStreaming && len(trace.OutputItems) == 0 {
		msg := "empty stream"
		trace.Error = &msg
	}

	return trace, nil
}

// numField returns the first present numeric field among names.
func numField(m map[string]interface{}, names ...string) (float64, bool) {
	for _, n := range names {
		if v, ok := m[n].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// unifyUsage accepts both the Chat Completions (prompt_tokens/
// completion_tokens) and Responses API (input_tokens/output_tokens) usage
// shapes, and either's nested cached/reasoning token detail object.
func unifyUsage(raw interface{}) models.Usage {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return models.Usage{}
	}
	var u models.Usage
	if v, ok := numField(m, "prompt_tokens", "input_tokens"); ok {
		u.PromptTokens = int(v)
	}
	if v, ok := numField(m, "completion_tokens", "output_tokens"); ok {
		u.CompletionTokens = int(v)
	}
	if v, ok := numField(m, "total_tokens"); ok {
		u.TotalTokens = int(v)
	} else {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	if details, ok := m["prompt_tokens_details"].(map[string]interface{}); ok {
		if v, ok := numField(details, "cached_tokens"); ok {
			u.CachedTokens = int(v)
		}
	} else if details, ok := m["input_tokens_details"].(map[string]interface{}); ok {
		if v, ok := numField(details, "cached_tokens"); ok {
			u.CachedTokens = int(v)
		}
	}
	if details, ok := m["completion_tokens_details"].(map[string]interface{}); ok {
		if v, ok := numField(details, "reasoning_tokens"); ok {
			u.ReasoningTokens = int(v)
		}
	} else if details, ok := m["output_tokens_details"].(map[string]interface{}); ok {
		if v, ok := numField(details, "reasoning_tokens"); ok {
			u.ReasoningTokens = int(v)
		}
	}
	return u
}

// parseChatMessages converts a Chat Completions "messages" array into
// tagged-variant input items. role=tool messages become ToolResultItem;
// assistant messages carrying tool_calls become FunctionCallItem entries
// interleaved after the assistant text (if any).
func parseChatMessages(raw interface{}) models.ItemList {
	arr, _ := raw.([]interface{})
	var items models.ItemList
	pos := 0
	for _, e := range arr {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		if role == "tool" {
			callID, _ := m["tool_call_id"].(string)
			name, _ := m["name"].(string)
			items = append(items, models.ToolResultItem{
				Position: pos, CallID: callID, ToolName: name, Result: stringifyContent(m["content"]),
			})
			pos++
			continue
		}
		if content := stringifyContent(m["content"]); content != "" || m["content"] != nil {
			items = append(items, models.MessageItem{Position: pos, Role: role, Content: content})
			pos++
		}
		if calls, ok := m["tool_calls"].([]interface{}); ok {
			for _, c := range calls {
				cm, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				callID, _ := cm["id"].(string)
				fn, _ := cm["function"].(map[string]interface{})
				name, _ := fn["name"].(string)
				args, _ := fn["arguments"].(string)
				items = append(items, models.FunctionCallItem{
					Position: pos, CallID: callID, Name: name, Arguments: args,
				})
				pos++
			}
		}
	}
	return items
}

// parseChatChoices extracts the first choice's assistant message and any
// tool calls as output items, plus the finish_reason.
func parseChatChoices(raw interface{}) (models.ItemList, *string) {
	arr, _ := raw.([]interface{})
	if len(arr) == 0 {
		return nil, nil
	}
	choice, _ := arr[0].(map[string]interface{})
	var finish *string
	if fr, ok := choice["finish_reason"].(string); ok {
		finish = &fr
	}
	msg, _ := choice["message"].(map[string]interface{})
	var items models.ItemList
	pos := 0
	if content := stringifyContent(msg["content"]); content != "" {
		items = append(items, models.OutputMessageItem{Position: pos, Text: content})
		pos++
	}
	if calls, ok := msg["tool_calls"].([]interface{}); ok {
		for _, c := range calls {
			cm, ok := c.(map[string]interface{})
			if !ok {
				continue
			}
			callID, _ := cm["id"].(string)
			fn, _ := cm["function"].(map[string]interface{})
			name, _ := fn["name"].(string)
			args, _ := fn["arguments"].(string)
			items = append(items, models.FunctionToolCallItem{
				Position: pos, CallID: callID, Name: name, Arguments: args,
			})
			pos++
		}
	}
	return items, finish
}

// parseResponsesInput converts the Responses API "input" array — a list
// of typed items — into tagged-variant input items.
func parseResponsesInput(raw interface{}) models.ItemList {
	arr, _ := raw.([]interface{})
	var items models.ItemList
	for pos, e := range arr {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		typ, _ := m["type"].(string)
		switch typ {
		case "function_call":
			callID, _ := m["call_id"].(string)
			name, _ := m["name"].(string)
			args, _ := m["arguments"].(string)
			items = append(items, models.FunctionCallItem{Position: pos, CallID: callID, Name: name, Arguments: args})
		case "function_call_output":
			callID, _ := m["call_id"].(string)
			items = append(items, models.ToolResultItem{Position: pos, CallID: callID, Result: stringifyContent(m["output"])})
		default:
			role, _ := m["role"].(string)
			if role == "" {
				role = "user"
			}
			items = append(items, models.MessageItem{Position: pos, Role: role, Content: stringifyContent(m["content"])})
		}
	}
	return items
}

// parseResponsesOutput converts the Responses API "output" array into
// tagged-variant output items.
func parseResponsesOutput(raw interface{}) models.ItemList {
	arr, _ := raw.([]interface{})
	var items models.ItemList
	pos := 0
	for _, e := range arr {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		typ, _ := m["type"].(string)
		switch typ {
		case "function_call":
			callID, _ := m["call_id"].(string)
			name, _ := m["name"].(string)
			args, _ := m["arguments"].(string)
			items = append(items, models.FunctionToolCallItem{Position: pos, CallID: callID, Name: name, Arguments: args})
			pos++
		case "message":
			content, _ := m["content"].([]interface{})
			for _, c := range content {
				cm, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				if text, ok := cm["text"].(string); ok {
					items = append(items, models.OutputMessageItem{Position: pos, Text: text})
					pos++
				}
			}
		}
	}
	return items
}

// stringifyContent handles both the plain-string content shape and the
// multi-part content-block array shape ({type:text,text:...} elements),
// concatenating text parts.
func stringifyContent(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []interface{}:
		var b strings.Builder
		for _, part := range v {
			pm, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := pm["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// reconstructStream replays an SSE transcript into a synthetic response
// object equivalent to the non-streaming response shape, per spec.md
// §4.A. Malformed chunks are skipped, not fatal.
func reconstructStream(transcript []byte, isResponses bool) (map[string]interface{}, error) {
	events := parseSSE(transcript)
	if isResponses {
		return reconstructResponsesStream(events)
	}
	return reconstructChatStream(events)
}

func reconstructChatStream(events []SSEEvent) (map[string]interface{}, error) {
	var content strings.Builder
	var finishReason interface{}
	var usage interface{}
	var fingerprint interface{}
	var toolCalls []interface{}
	sawContent := false

	for _, e := range events {
		var chunk map[string]interface{}
		if err := json.Unmarshal([]byte(e.Data), &chunk); err != nil {
			continue // skip malformed chunk, do not abort the stream
		}
		if u, ok := chunk["usage"]; ok && u != nil {
			usage = u
		}
		if fp, ok := chunk["system_fingerprint"]; ok {
			fingerprint = fp
		}
		choices, _ := chunk["choices"].([]interface{})
		if len(choices) == 0 {
			continue
		}
		choice, _ := choices[0].(map[string]interface{})
		if fr, ok := choice["finish_reason"]; ok && fr != nil {
			finishReason = fr
		}
		delta, _ := choice["delta"].(map[string]interface{})
		if c, ok := delta["content"].(string); ok && c != "" {
			content.WriteString(c)
			sawContent = true
		}
		if calls, ok := delta["tool_calls"].([]interface{}); ok {
			toolCalls = append(toolCalls, calls...)
			sawContent = true
		}
	}
	if !sawContent {
		return nil, fmt.Errorf("empty stream")
	}
	msg := map[string]interface{}{"role": "assistant", "content": content.String()}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}
	return map[string]interface{}{
		"choices":            []interface{}{map[string]interface{}{"message": msg, "finish_reason": finishReason}},
		"usage":              usage,
		"system_fingerprint": fingerprint,
	}, nil
}

func reconstructResponsesStream(events []SSEEvent) (map[string]interface{}, error) {
	var completed map[string]interface{}
	var fallbackText string
	sawAny := false

	for _, e := range events {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(e.Data), &payload); err != nil {
			continue
		}
		switch e.Event {
		case "response.completed":
			if resp, ok := payload["response"].(map[string]interface{}); ok {
				completed = resp
				sawAny = true
			}
		case "response.output_text.done":
			if text, ok := payload["text"].(string); ok {
				fallbackText = text
				sawAny = true
			}
		default:
			if _, ok := payload["response"]; ok {
				sawAny = true
			}
		}
	}
	if completed != nil {
		return completed, nil
	}
	if fallbackText != "" {
		return map[string]interface{}{
			"output": []interface{}{
				map[string]interface{}{
					"type":    "message",
					"content": []interface{}{map[string]interface{}{"text": fallbackText}},
				},
			},
		}, nil
	}
	if !sawAny {
		return nil, fmt.Errorf("empty stream")
	}
	return map[string]interface{}{}, nil
}
