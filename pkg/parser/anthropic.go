package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/traceforge/tracepilot/pkg/models"
)

// AnthropicParser decodes the Anthropic Messages API wire format, including
// its streaming SSE variant (spec.md §4.A).
type AnthropicParser struct{}

// NewAnthropicParser constructs the Anthropic parser.
func NewAnthropicParser() *AnthropicParser { return &AnthropicParser{} }

// Name implements Parser.
func (p *AnthropicParser) Name() string { return "anthropic" }

// Claims implements Parser.
func (p *AnthropicParser) Claims(rawURL string) bool {
	return hostHasSuffix(rawURL, "anthropic.com")
}

// Parse implements Parser.
func (p *AnthropicParser) Parse(in Input) (*models.ParsedTrace, error) {
	var req map[string]interface{}
	if len(in.RequestBytes) > 0 {
		if err := json.Unmarshal(in.RequestBytes, &req); err != nil {
			return nil, fmt.Errorf("anthropic parser: decode request: %w", err)
		}
	}

	var resp map[string]interface{}
	var streamErr string
	if in.IsStreaming {
		var err error
		resp, err = reconstructAnthropicStream(in.StreamingResponse)
		if err != nil {
			streamErr = err.Error()
		}
	} else if len(in.ResponseBytes) > 0 {
		if err := json.Unmarshal(in.ResponseBytes, &resp); err != nil {
			return nil, fmt.Errorf("anthropic parser: decode response: %w", err)
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
	if mt, ok := numField(req, "max_tokens"); ok {
		v := int(mt)
		trace.MaxTokens = &v
	}
	if tools, ok := req["tools"].([]interface{}); ok {
		trace.Tools = tools
	}

	items := models.ItemList{}
	pos := 0
	if sys := req["system"]; sys != nil {
		items = append(items, models.MessageItem{Position: pos, Role: "system", Content: stringifyContent(sys)})
		pos++
	}
	if msgs, ok := req["messages"].([]interface{}); ok {
		for _, e := range msgs {
			m, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			items = appendAnthropicContentItems(items, &pos, role, m["content"])
		}
	}
	trace.InputItems = items

	if resp != nil {
		var outItems models.ItemList
		outPos := 0
		if stop, ok := resp["stop_reason"].(string); ok {
			trace.FinishReason = &stop
		}
		if content, ok := resp["content"].([]interface{}); ok {
			for _, c := range content {
				cm, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				switch cm["type"] {
				case "text":
					text, _ := cm["text"].(string)
					outItems = append(outItems, models.OutputMessageItem{Position: outPos, Text: text})
					outPos++
				case "tool_use":
					callID, _ := cm["id"].(string)
					name, _ := cm["name"].(string)
					var args string
					if input, ok := cm["input"]; ok {
						if b, err := json.Marshal(input); err == nil {
							args = string(b)
						}
					}
					outItems = append(outItems, models.FunctionToolCallItem{
						Position: outPos, CallID: callID, Name: name, Arguments: args,
					})
					outPos++
				}
			}
		}
		trace.OutputItems = outItems

		if usage, ok := resp["usage"].(map[string]interface{}); ok {
			var u models.Usage
			if v, ok := numField(usage, "input_tokens"); ok {
				u.PromptTokens = int(v)
			}
			if v, ok := numField(usage, "output_tokens"); ok {
				u.CompletionTokens = int(v)
			}
			if v, ok := numField(usage, "cache_read_input_tokens"); ok {
				u.CachedTokens = int(v)
			}
			u.TotalTokens = u.PromptTokens + u.CompletionTokens
			trace.Usage = u
		}
	}

	if trace.Error == nil && in.IsStreaming && len(trace.OutputItems) == 0 {
		msg := "empty stream"
		trace.Error = &msg
	}

	return trace, nil
}

// appendAnthropicContentItems maps one Anthropic message's content (plain
// string or content-block array) into the relevant tagged-variant items:
// tool_result blocks become ToolResultItem, tool_use blocks become
// FunctionCallItem (input-side replay of a prior turn), text/other content
// collapses into a single MessageItem.
func appendAnthropicContentItems(items models.ItemList, pos *int, role string, content interface{}) models.ItemList {
	blocks, ok := content.([]interface{})
	if !ok {
		items = append(items, models.MessageItem{Position: *pos, Role: role, Content: stringifyContent(content)})
		*pos++
		return items
	}
	var textParts []string
	for _, b := range blocks {
		bm, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		switch bm["type"] {
		case "tool_result":
			callID, _ := bm["tool_use_id"].(string)
			items = append(items, models.ToolResultItem{Position: *pos, CallID: callID, Result: stringifyContent(bm["content"])})
			*pos++
		case "tool_use":
			callID, _ := bm["id"].(string)
			name, _ := bm["name"].(string)
			var args string
			if input, ok := bm["input"]; ok {
				if b, err := json.Marshal(input); err == nil {
					args = string(b)
				}
			}
			items = append(items, models.FunctionCallItem{Position: *pos, CallID: callID, Name: name, Arguments: args})
			*pos++
		case "text":
			if t, ok := bm["text"].(string); ok {
				textParts = append(textParts, t)
			}
		}
	}
	if len(textParts) > 0 {
		items = append(items, models.MessageItem{Position: *pos, Role: role, Content: strings.Join(textParts, "\n")})
		*pos++
	}
	return items
}

// reconstructAnthropicStream replays an Anthropic "message_start" /
// "content_block_delta" / "message_delta" SSE sequence into a synthetic
// non-streaming response object.
func reconstructAnthropicStream(transcript []byte) (map[string]interface{}, error) {
	events := parseSSE(transcript)
	var textBlocks []string
	var curText strings.Builder
	var toolCalls []interface{}
	var curTool map[string]interface{}
	var curToolArgs strings.Builder
	var stopReason interface{}
	var usage map[string]interface{}
	sawAny := false

	flushText := func() {
		if curText.Len() > 0 {
			textBlocks = append(textBlocks, curText.String())
			curText.Reset()
		}
	}
	flushTool := func() {
		if curTool != nil {
			curTool["input"] = json.RawMessage(curToolArgs.String())
			toolCalls = append(toolCalls, curTool)
			curTool = nil
			curToolArgs.Reset()
		}
	}

	for _, e := range events {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(e.Data), &payload); err != nil {
			continue
		}
		switch e.Event {
		case "content_block_start":
			if block, ok := payload["content_block"].(map[string]interface{}); ok && block["type"] == "tool_use" {
				flushTool()
				curTool = map[string]interface{}{
					"type": "tool_use",
					"id":   block["id"],
					"name": block["name"],
				}
			}
		case "content_block_delta":
			if delta, ok := payload["delta"].(map[string]interface{}); ok {
				if text, ok := delta["text"].(string); ok {
					curText.WriteString(text)
					sawAny = true
				}
				if partial, ok := delta["partial_json"].(string); ok {
					curToolArgs.WriteString(partial)
					sawAny = true
				}
			}
		case "content_block_stop":
			flushTool()
		case "message_delta":
			if delta, ok := payload["delta"].(map[string]interface{}); ok {
				if sr, ok := delta["stop_reason"]; ok {
					stopReason = sr
				}
			}
			if u, ok := payload["usage"].(map[string]interface{}); ok {
				usage = u
			}
		}
	}
	flushText()
	flushTool()

	if !sawAny {
		return nil, fmt.Errorf("empty stream")
	}

	var content []interface{}
	for _, t := range textBlocks {
		content = append(content, map[string]interface{}{"type": "text", "text": t})
	}
	content = append(content, toolCalls...)

	return map[string]interface{}{
		"content":     content,
		"stop_reason": stopReason,
		"usage":       usage,
	}, nil
}
