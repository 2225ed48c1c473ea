// Package models holds the provider-agnostic shapes shared by the parser,
// matcher, executor, and grader components: LLM conversation items modeled
// as tagged variants (spec.md §9 — "avoid retaining provider-specific
// nested shapes beyond the parser boundary").
package models

import (
	"encoding/json"
	"fmt"
)

// ItemType discriminates the kind of conversation item.
type ItemType string

// Supported item types. Parsers only ever produce these five; storage
// persists their canonical JSON form and nothing provider-specific leaks
// past the parser boundary.
const (
	ItemTypeMessage           ItemType = "message"
	ItemTypeFunctionCall      ItemType = "function_call"
	ItemTypeFunctionToolCall  ItemType = "function_tool_call"
	ItemTypeToolResult        ItemType = "tool_result"
	ItemTypeOutputMessage     ItemType = "output_message"
)

// Item is implemented by every conversation item variant.
type Item interface {
	Type() ItemType
	Pos() int
}

// MessageItem is a plain role+content message (system/user/assistant).
type MessageItem struct {
	Position int    `json:"position"`
	Role     string `json:"role"`
	Content  string `json:"content"`
}

func (m MessageItem) Type() ItemType { return ItemTypeMessage }
func (m MessageItem) Pos() int       { return m.Position }

// FunctionCallItem is a model-issued tool/function call on the input side
// of a conversation (e.g. replayed history from a prior turn).
type FunctionCallItem struct {
	Position  int    `json:"position"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (f FunctionCallItem) Type() ItemType { return ItemTypeFunctionCall }
func (f FunctionCallItem) Pos() int       { return f.Position }

// FunctionToolCallItem is a model-issued tool/function call on the output
// side of a conversation (what the model just produced).
type FunctionToolCallItem struct {
	Position  int    `json:"position"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (f FunctionToolCallItem) Type() ItemType { return ItemTypeFunctionToolCall }
func (f FunctionToolCallItem) Pos() int       { return f.Position }

// ToolResultItem is the result of executing a tool call, fed back as a
// role=tool message.
type ToolResultItem struct {
	Position int    `json:"position"`
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name,omitempty"`
	Result   string `json:"result"`
}

func (t ToolResultItem) Type() ItemType { return ItemTypeToolResult }
func (t ToolResultItem) Pos() int       { return t.Position }

// OutputMessageItem is assistant text on the output side.
type OutputMessageItem struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

func (o OutputMessageItem) Type() ItemType { return ItemTypeOutputMessage }
func (o OutputMessageItem) Pos() int       { return o.Position }

// ItemList is an ordered list of tagged-variant items. It marshals to/from
// the JSON shape persisted in Trace.input_items / Trace.output_items,
// discriminating on a "type" field so storage stays provider-agnostic.
type ItemList []Item

// MarshalJSON emits each item with its discriminator under "type".
func (l ItemList) MarshalJSON() ([]byte, error) {
	raw := make([]map[string]interface{}, 0, len(l))
	for _, item := range l {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		m["type"] = string(item.Type())
		raw = append(raw, m)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON dispatches each element to its concrete type based on the
// "type" discriminator.
func (l *ItemList) UnmarshalJSON(data []byte) error {
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ItemList, 0, len(raw))
	for _, m := range raw {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		typ, _ := m["type"].(string)
		item, err := decodeItem(ItemType(typ), b)
		if err != nil {
			return err
		}
		out = append(out, item)
	}
	*l = out
	return nil
}

func decodeItem(typ ItemType, b []byte) (Item, error) {
	switch typ {
	case ItemTypeMessage:
		var v MessageItem
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ItemTypeFunctionCall:
		var v FunctionCallItem
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ItemTypeFunctionToolCall:
		var v FunctionToolCallItem
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ItemTypeToolResult:
		var v ToolResultItem
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ItemTypeOutputMessage:
		var v OutputMessageItem
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("models: unknown item type %q", typ)
	}
}

// ToAnySlice converts an ItemList to the []interface{} shape ent's JSON
// field expects, round-tripping through MarshalJSON so the discriminator
// is present.
func (l ItemList) ToAnySlice() ([]interface{}, error) {
	b, err := l.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ItemListFromAny decodes the []interface{} shape stored by ent back into
// a typed ItemList.
func ItemListFromAny(raw []interface{}) (ItemList, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var l ItemList
	if err := l.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return l, nil
}

// FirstMessageContent returns the content of the first MessageItem in the
// list, used by the clusterer (§4.C) and matcher (§4.B) as the candidate
// prompt text.
func (l ItemList) FirstMessageContent() (string, bool) {
	for _, item := range l {
		if m, ok := item.(MessageItem); ok {
			return m.Content, true
		}
	}
	return "", false
}

// HasSystemPrompt reports whether any item is a system-role message.
func (l ItemList) HasSystemPrompt() bool {
	for _, item := range l {
		if m, ok := item.(MessageItem); ok && m.Role == "system" {
			return true
		}
	}
	return false
}
