package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemListRoundTripsThroughAnySlice(t *testing.T) {
	list := ItemList{
		MessageItem{Position: 0, Role: "system", Content: "be terse"},
		MessageItem{Position: 1, Role: "user", Content: "summarize this"},
		FunctionToolCallItem{Position: 2, CallID: "call_1", Name: "lookup", Arguments: `{"q":"x"}`},
		ToolResultItem{Position: 3, CallID: "call_1", ToolName: "lookup", Result: "ok"},
		OutputMessageItem{Position: 4, Text: "done"},
	}

	raw, err := list.ToAnySlice()
	require.NoError(t, err)
	require.Len(t, raw, 5)

	decoded, err := ItemListFromAny(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 5)

	assert.Equal(t, ItemTypeMessage, decoded[0].Type())
	assert.Equal(t, ItemTypeMessage, decoded[1].Type())
	assert.Equal(t, ItemTypeFunctionToolCall, decoded[2].Type())
	assert.Equal(t, ItemTypeToolResult, decoded[3].Type())
	assert.Equal(t, ItemTypeOutputMessage, decoded[4].Type())

	call, ok := decoded[2].(FunctionToolCallItem)
	require.True(t, ok)
	assert.Equal(t, "lookup", call.Name)
	assert.Equal(t, `{"q":"x"}`, call.Arguments)
}

func TestItemListFromAny_RejectsUnknownType(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"type": "bogus", "position": float64(0)},
	}
	_, err := ItemListFromAny(raw)
	assert.Error(t, err)
}

func TestItemList_FirstMessageContentReturnsFirstMessageOnly(t *testing.T) {
	list := ItemList{
		FunctionCallItem{Position: 0, CallID: "c1", Name: "f", Arguments: "{}"},
		MessageItem{Position: 1, Role: "user", Content: "hello"},
		MessageItem{Position: 2, Role: "assistant", Content: "world"},
	}
	content, ok := list.FirstMessageContent()
	require.True(t, ok)
	assert.Equal(t, "hello", content)
}

func TestItemList_FirstMessageContentFalseWhenNoMessage(t *testing.T) {
	list := ItemList{
		FunctionCallItem{Position: 0, CallID: "c1", Name: "f", Arguments: "{}"},
	}
	_, ok := list.FirstMessageContent()
	assert.False(t, ok)
}

func TestItemList_HasSystemPrompt(t *testing.T) {
	withSystem := ItemList{
		MessageItem{Position: 0, Role: "system", Content: "be terse"},
		MessageItem{Position: 1, Role: "user", Content: "hi"},
	}
	assert.True(t, withSystem.HasSystemPrompt())

	withoutSystem := ItemList{
		MessageItem{Position: 0, Role: "user", Content: "hi"},
	}
	assert.False(t, withoutSystem.HasSystemPrompt())
}
