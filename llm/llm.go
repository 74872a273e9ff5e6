// Package llm defines the narrow language-model client interface consumed by
// the agent loop and the memory maintenance path, plus the neutral message
// types exchanged through it. Provider SDK types never leak past the adapter.
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in the conversation sent to the model.
//
// For RoleAssistant, ToolCalls carries any tool invocations the model made
// alongside (or instead of) text content. For RoleTool, ToolCallID references
// the call this message answers and Content holds the tool result.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-initiated request to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolSchema describes a callable tool to the model.
// Parameters is a JSON Schema object: {"type":"object","properties":{...},"required":[...]}.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Request is a single completion call.
//
// When Tools is empty the call is tool-less: the client must not force any
// tool choice and the model responds with plain content.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSchema
}

// Response is the model's reply to a Request. Content may be empty when the
// model only issued tool calls; ToolCalls is nil for a final text answer.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the language-model collaborator. Implementations must be safe
// for concurrent use across sessions.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}
