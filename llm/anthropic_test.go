package llm

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestToMessageParamsRoles(t *testing.T) {
	params := toMessageParams([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "let me check", ToolCalls: []ToolCall{
			{ID: "call-1", Name: "lookup", Arguments: json.RawMessage(`{"q":"x"}`)},
		}},
		{Role: RoleTool, Content: "result", ToolCallID: "call-1"},
		{Role: RoleAssistant, Content: "done"},
	})

	if len(params) != 4 {
		t.Fatalf("got %d params, want 4", len(params))
	}

	wantRoles := []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		// Tool results travel as user messages carrying tool_result blocks.
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
	}
	for i, want := range wantRoles {
		if params[i].Role != want {
			t.Errorf("param %d role = %s, want %s", i, params[i].Role, want)
		}
	}

	// Assistant turn with text plus one tool call carries two blocks.
	if len(params[1].Content) != 2 {
		t.Errorf("assistant tool-call message has %d blocks, want 2", len(params[1].Content))
	}
}

func TestToMessageParamsSkipsEmptyAssistant(t *testing.T) {
	params := toMessageParams([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: ""},
	})
	if len(params) != 1 {
		t.Errorf("empty assistant message must be dropped, got %d params", len(params))
	}
}

func TestToToolParams(t *testing.T) {
	tools := toToolParams([]ToolSchema{
		{
			Name:        "save_memory",
			Description: "saves a memory",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"content": map[string]interface{}{"type": "string"},
				},
				"required": []string{"content"},
			},
		},
	})

	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}
	tool := tools[0].OfTool
	if tool == nil {
		t.Fatal("OfTool not set")
	}
	if tool.Name != "save_memory" {
		t.Errorf("name = %s", tool.Name)
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "content" {
		t.Errorf("required = %v", tool.InputSchema.Required)
	}
}
