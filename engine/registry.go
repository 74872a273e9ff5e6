package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/becomeliminal/recall-go-sdk/llm"
)

// Handler executes a tool call. It receives the raw JSON arguments from the
// model (with any session-scoped arguments already injected) and returns the
// textual result fed back into the conversation.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a named function value plus its statically declared parameter
// schema. Registration is an explicit table built at startup; nothing is
// derived from runtime introspection.
type Tool struct {
	Name        string
	Description string

	// Parameters is the JSON Schema object for the tool's arguments:
	// {"type":"object","properties":{...},"required":[...]}.
	// Properties named "user_id" or "session_id" are overwritten with the
	// session-scoped values by the agent loop before invocation.
	Parameters map[string]interface{}

	Handler Handler
}

// Schema returns the tool description advertised to the model.
func (t Tool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// declaresParam reports whether the tool's schema declares the named
// property.
func (t Tool) declaresParam(name string) bool {
	props, ok := t.Parameters["properties"].(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = props[name]
	return ok
}

// Registry is the explicit tool table consumed by the agent loop. Build it
// at startup and treat it as read-only afterwards; it is safe for concurrent
// reads but registration is not synchronized.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tools to the registry. Fails on empty names, missing
// handlers, and duplicates.
func (r *Registry) Register(tools ...Tool) error {
	for _, tool := range tools {
		if tool.Name == "" {
			return fmt.Errorf("engine: tool with empty name")
		}
		if tool.Handler == nil {
			return fmt.Errorf("engine: tool %s has no handler", tool.Name)
		}
		if _, exists := r.tools[tool.Name]; exists {
			return fmt.Errorf("engine: tool %s already registered", tool.Name)
		}
		r.tools[tool.Name] = tool
		r.order = append(r.order, tool.Name)
	}
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Schemas returns all tool schemas in registration order.
func (r *Registry) Schemas() []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}
