package parser

import (
	"encoding/json"
	"fmt"

	"github.com/traceforge/tracepilot/pkg/models"
)

// GeminiParser decodes the Google Generative Language API (Gemini)
// generateContent / streamGenerateContent wire format (spec.md §4.A).
type GeminiParser struct{}

// NewGeminiParser constructs the Gemini parser.
func NewGeminiParser() *GeminiParser { return &GeminiParser{} }

// Name implements Parser.
func (p *GeminiParser) Name() string { return "gemini" }

// Claims implements Parser.
func (p *GeminiParser) Claims(rawURL string) bool {
	return hostHasSuffix(rawURL, "googleapis.com")
}

// Parse implements Parser.
func (p *GeminiParser) Parse(in Input) (*models.ParsedTrace, error) {
	var req map[string]interface{}
	if len(in.RequestBytes) > 0 {
		if err := json.Unmarshal(in.RequestBytes, &req); err != nil {
			return nil, fmt.Errorf("gemini parser: decode request: %w", err)
		}
	}

	var resp map[string]interface{}
	var streamErr string
	if in.IsStreaming {
		var err error
		resp, err = reconstructGeminiStream(in.StreamingResponse)
		if err != nil {
			streamErr = err.Error()
		}
	} else if len(in.ResponseBytes) > 0 {
		if err := json.Unmarshal(in.ResponseBytes, &resp); err != nil {
			return nil, fmt.Errorf("gemini parser: decode response: %w", err)
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

	// Gemini's model name travels in the URL path, not the request body
	// (e.g. "/v1beta/models/gemini-1.5-pro:generateContent"). The parser
	// takes it only from Metadata["model"] when the caller supplies one; it
	// does not derive it from the URL, and the ingest pipeline passes the
	// captured metadata through unchanged, so Model is empty otherwise.
	if m, ok := in.Metadata["model"].(string); ok {
		trace.Model = m
	}
	if cfg, ok := req["generationConfig"].(map[string]interface{}); ok {
		if t, ok := cfg["temperature"].(float64); ok {
			trace.Temperature = &t
		}
		if mt, ok := numField(cfg, "maxOutputTokens"); ok {
			v := int(mt)
			trace.MaxTokens = &v
		}
		if schema, ok := cfg["responseSchema"].(map[string]interface{}); ok {
			trace.ResponseSchema = schema
		}
	}
	if tools, ok := req["tools"].([]interface{}); ok {
		trace.Tools = tools
	}
	if sys, ok := req["systemInstruction"].(map[string]interface{}); ok {
		trace.InputItems = append(trace.InputItems, models.MessageItem{
			Position: 0, Role: "system", Content: geminiPartsText(sys["parts"]),
		})
	}
	if contents, ok := req["contents"].([]interface{}); ok {
		trace.InputItems = append(trace.InputItems, parseGeminiContents(contents, len(trace.InputItems))...)
	}

	if resp != nil {
		trace.OutputItems = parseGeminiCandidates(resp["candidates"])
		if usage, ok := resp["usageMetadata"].(map[string]interface{}); ok {
			var u models.Usage
			if v, ok := numField(usage, "promptTokenCount"); ok {
				u.PromptTokens = int(v)
			}
			if v, ok := numField(usage, "candidatesTokenCount"); ok {
				u.CompletionTokens = int(v)
			}
			if v, ok := numField(usage, "cachedContentTokenCount"); ok {
				u.CachedTokens = int(v)
			}
			if v, ok := numField(usage, "thoughtsTokenCount"); ok {
				u.ReasoningTokens = int(v)
			}
			if v, ok := numField(usage, "totalTokenCount"); ok {
				u.TotalTokens = int(v)
			} else {
				u.TotalTokens = u.PromptTokens + u.CompletionTokens
			}
			trace.Usage = u
		}
	}

	if trace.Error == nil && in.IsStreaming && len(trace.OutputItems) == 0 {
		msg := "empty stream"
		trace.Error = &msg
	}

	return trace, nil
}

func geminiPartsText(raw interface{}) string {
	parts, ok := raw.([]interface{})
	if !ok {
		return ""
	}
	var out string
	for _, p := range parts {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		if text, ok := pm["text"].(string); ok {
			out += text
		}
	}
	return out
}

// parseGeminiContents converts the request "contents" array (role +
// parts, where a part may be text, functionCall, or functionResponse)
// into tagged-variant input items.
func parseGeminiContents(contents []interface{}, startPos int) models.ItemList {
	var items models.ItemList
	pos := startPos
	for _, e := range contents {
		cm, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := cm["role"].(string)
		parts, _ := cm["parts"].([]interface{})
		var textBuf string
		for _, p := range parts {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := pm["text"].(string); ok {
				textBuf += text
				continue
			}
			if fc, ok := pm["functionCall"].(map[string]interface{}); ok {
				name, _ := fc["name"].(string)
				var args string
				if a, ok := fc["args"]; ok {
					if b, err := json.Marshal(a); err == nil {
						args = string(b)
					}
				}
				items = append(items, models.FunctionCallItem{Position: pos, Name: name, Arguments: args})
				pos++
				continue
			}
			if fr, ok := pm["functionResponse"].(map[string]interface{}); ok {
				name, _ := fr["name"].(string)
				result := stringifyContent(fr["response"])
				items = append(items, models.ToolResultItem{Position: pos, ToolName: name, Result: result})
				pos++
			}
		}
		if textBuf != "" {
			items = append(items, models.MessageItem{Position: pos, Role: role, Content: textBuf})
			pos++
		}
	}
	return items
}

// parseGeminiCandidates extracts the first candidate's parts as output
// items.
func parseGeminiCandidates(raw interface{}) models.ItemList {
	candidates, ok := raw.([]interface{})
	if !ok || len(candidates) == 0 {
		return nil
	}
	cand, _ := candidates[0].(map[string]interface{})
	content, _ := cand["content"].(map[string]interface{})
	parts, _ := content["parts"].([]interface{})
	var items models.ItemList
	pos := 0
	for _, p := range parts {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		if text, ok := pm["text"].(string); ok {
			items = append(items, models.OutputMessageItem{Position: pos, Text: text})
			pos++
			continue
		}
		if fc, ok := pm["functionCall"].(map[string]interface{}); ok {
			name, _ := fc["name"].(string)
			var args string
			if a, ok := fc["args"]; ok {
				if b, err := json.Marshal(a); err == nil {
					args = string(b)
				}
			}
			items = append(items, models.FunctionToolCallItem{Position: pos, Name: name, Arguments: args})
			pos++
		}
	}
	return items
}

// reconstructGeminiStream concatenates the streamGenerateContent SSE
// "data:" chunks (each itself a single GenerateContentResponse) into a synthetic
// non-streaming response, merging text parts and carrying the last
// usageMetadata seen.
func reconstructGeminiStream(transcript []byte) (map[string]interface{}, error) {
	events := parseSSE(transcript)
	var textParts []string
	var functionCalls []interface{}
	var usage map[string]interface{}
	sawAny := false

	for _, e := range events {
		var chunk map[string]interface{}
		if err := json.Unmarshal([]byte(e.Data), &chunk); err != nil {
			continue
		}
		if u, ok := chunk["usageMetadata"].(map[string]interface{}); ok {
			usage = u
		}
		candidates, _ := chunk["candidates"].([]interface{})
		if len(candidates) == 0 {
			continue
		}
		cand, _ := candidates[0].(map[string]interface{})
		content, _ := cand["content"].(map[string]interface{})
		parts, _ := content["parts"].([]interface{})
		for _, p := range parts {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := pm["text"].(string); ok && text != "" {
				textParts = append(textParts, text)
				sawAny = true
			}
			if fc, ok := pm["functionCall"]; ok {
				functionCalls = append(functionCalls, map[string]interface{}{"functionCall": fc})
				sawAny = true
			}
		}
	}
	if !sawAny {
		return nil, fmt.Errorf("empty stream")
	}
	var joined string
	for _, t := range textParts {
		joined += t
	}
	var parts []interface{}
	if joined != "" {
		parts = append(parts, map[string]interface{}{"text": joined})
	}
	parts = append(parts, functionCalls...)
	return map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{"content": map[string]interface{}{"parts": parts}},
		},
		"usageMetadata": usage,
	}, nil
}
