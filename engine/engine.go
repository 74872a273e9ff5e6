package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/becomeliminal/recall-go-sdk/llm"
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/memory/shortterm"
)

const (
	// DefaultMaxIterations bounds the number of model calls per message.
	DefaultMaxIterations = 5

	// DefaultCallTimeout bounds a single model call.
	DefaultCallTimeout = 60 * time.Second
)

const defaultSystemPrompt = `You are a helpful, sharp-witted AI assistant with a hybrid agentic memory.

# MEMORY MANAGEMENT (PASSIVE & ACTIVE)

## YOUR CONTEXT WINDOW AUTOMATICALLY CONTAINS:
1. CORE FACTS: permanent user details (name, preferences, keys).
2. RELEVANT PAST MEMORIES: the system searches long-term memory for information relevant to the user's last message.
3. RECENT CHAT: the most recent conversation turns.

## YOUR RESPONSIBILITIES:
1. CHECK CONTEXT FIRST: before asking the user for information, check the RELEVANT PAST MEMORIES section. The answer might already be there.
2. ACTIVE RECALL (search_memory): use it when the automatic context is insufficient, e.g. when the user references a specific past event not in your context.
3. ACTIVE SAVING (save_memory): you MUST explicitly save important details. If you don't save it, it is lost when it leaves the short-term window.
   - Use type 'core' for permanent user facts. These are ALWAYS loaded.
   - Use type 'episodic' for conversation highlights, projects, events, or opinions. These are searchable.
4. FORGET: use forget_recent_conversation to reset short-term history when asked.

# TOOLS
- Use tools whenever necessary.
- Do not announce your tool usage. Just do it silently and reply naturally.`

// OutputType distinguishes a normal completion from an exhausted loop.
type OutputType string

const (
	// OutputComplete means the model finished with a plain text response.
	OutputComplete OutputType = "complete"

	// OutputExhausted means the iteration cap was hit while the model was
	// still requesting tools. Output.Text carries the last partial content.
	OutputExhausted OutputType = "exhausted"
)

// Input is one user message to process.
type Input struct {
	UserMessage string

	// UserName is the display name rendered into the system prompt, if set.
	UserName string

	// Extra holds additional context lines rendered into the system prompt,
	// e.g. channel or server information supplied by the transport.
	Extra map[string]string
}

// Output is the result of processing one message.
type Output struct {
	Type OutputType
	Text string

	// Rounds is the number of model calls made.
	Rounds int
}

// Option configures an Agent.
type Option func(*Agent)

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithMaxIterations sets the model-call cap per message.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithCallTimeout sets the per-model-call timeout. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Agent) { a.callTimeout = d }
}

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Agent runs the bounded tool-calling loop for one session. It is not safe
// for concurrent use; the session runtime serializes access.
type Agent struct {
	client   llm.Client
	registry *Registry
	mem      *memory.Manager

	systemPrompt  string
	maxIterations int
	callTimeout   time.Duration
	logger        *slog.Logger
}

// NewAgent creates an agent bound to a session's memory manager.
func NewAgent(client llm.Client, registry *Registry, mem *memory.Manager, opts ...Option) *Agent {
	a := &Agent{
		client:        client,
		registry:      registry,
		mem:           mem,
		systemPrompt:  defaultSystemPrompt,
		maxIterations: DefaultMaxIterations,
		callTimeout:   DefaultCallTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProcessMessage runs the tool loop for one user message. The interaction is
// persisted to memory on normal completion and on exhaustion; a model-call
// failure is returned without persisting anything, and a persistence failure
// is returned without an output.
func (a *Agent) ProcessMessage(ctx context.Context, input Input) (*Output, error) {
	system, err := a.renderSystem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("engine: render system prompt: %w", err)
	}

	messages, err := a.seedMessages(ctx, input.UserMessage)
	if err != nil {
		return nil, fmt.Errorf("engine: load history: %w", err)
	}

	req := &llm.Request{
		System:   system,
		Messages: messages,
		Tools:    a.registry.Schemas(),
	}

	var lastContent string
	for round := 1; round <= a.maxIterations; round++ {
		resp, err := a.complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("engine: model call %d: %w", round, err)
		}
		if resp.Content != "" {
			lastContent = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			if err := a.persist(ctx, input.UserMessage, resp.Content); err != nil {
				return nil, err
			}
			return &Output{Type: OutputComplete, Text: resp.Content, Rounds: round}, nil
		}

		req.Messages = append(req.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := a.execute(ctx, call)
			req.Messages = append(req.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	text := lastContent
	if text == "" {
		text = "I couldn't finish working through that request. Could you try rephrasing it?"
	}
	a.logger.Warn("agent loop exhausted",
		"session_id", a.mem.SessionID(), "max_iterations", a.maxIterations)
	if err := a.persist(ctx, input.UserMessage, text); err != nil {
		return nil, err
	}
	return &Output{Type: OutputExhausted, Text: text, Rounds: a.maxIterations}, nil
}

func (a *Agent) complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}
	return a.client.Complete(ctx, req)
}

// execute runs one tool call and always returns a textual result: unknown
// tools, handler errors, and handler panics all become error strings fed
// back to the model rather than aborting the loop.
func (a *Agent) execute(ctx context.Context, call llm.ToolCall) (result string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			result = fmt.Sprintf("Error executing tool: %v", r)
		}
	}()

	tool, ok := a.registry.Get(call.Name)
	if !ok {
		a.logger.Warn("unknown tool requested", "tool", call.Name)
		return fmt.Sprintf("Error: Tool %s not found.", call.Name)
	}

	args, err := a.injectSessionArgs(tool, call.Arguments)
	if err != nil {
		a.logger.Error("tool arguments malformed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Error executing tool: %v", err)
	}

	out, err := tool.Handler(ctx, args)
	if err != nil {
		a.logger.Error("tool failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Error executing tool: %v", err)
	}
	return out
}

// injectSessionArgs overwrites user_id and session_id in the call arguments
// when the tool's schema declares those properties. The model never controls
// session identity.
func (a *Agent) injectSessionArgs(tool Tool, raw json.RawMessage) (json.RawMessage, error) {
	wantUser := tool.declaresParam("user_id")
	wantSession := tool.declaresParam("session_id")
	if !wantUser && !wantSession {
		return raw, nil
	}

	args := make(map[string]interface{})
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
	}
	if wantUser {
		args["user_id"] = a.mem.UserID()
	}
	if wantSession {
		args["session_id"] = a.mem.SessionID()
	}
	return json.Marshal(args)
}

func (a *Agent) renderSystem(ctx context.Context, input Input) (string, error) {
	var b strings.Builder
	b.WriteString(a.systemPrompt)

	if input.UserName != "" {
		fmt.Fprintf(&b, "\n\nUser Name: %s", input.UserName)
	}
	for key, value := range input.Extra {
		fmt.Fprintf(&b, "\n%s: %s", key, value)
	}

	memCtx, err := a.mem.GetContext(ctx, input.UserMessage)
	if err != nil {
		return "", err
	}
	if !memCtx.Empty() {
		b.WriteString("\n\n# CURRENT CONTEXT\n")
		b.WriteString(memCtx.Render())
	}
	return b.String(), nil
}

// seedMessages maps the recent short-term history to conversation messages
// and appends the current user message.
func (a *Agent) seedMessages(ctx context.Context, userMessage string) ([]llm.Message, error) {
	turns, err := a.mem.RecentHistory(ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	for _, turn := range turns {
		role := llm.RoleUser
		if turn.Role == shortterm.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage}), nil
}

// persist durably records the interaction. An append failure aborts the
// turn so the caller replies with a failure instead of an answer that never
// entered history. Maintenance failures are absorbed inside AddInteraction
// and never reach here.
func (a *Agent) persist(ctx context.Context, userMessage, assistantMessage string) error {
	if err := a.mem.AddInteraction(ctx, userMessage, assistantMessage); err != nil {
		a.logger.Error("persist interaction failed",
			"session_id", a.mem.SessionID(), "error", err)
		return fmt.Errorf("engine: persist interaction: %w", err)
	}
	return nil
}
