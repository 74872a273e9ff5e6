package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/recall-go-sdk/llm"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

const (
	// DefaultMaxSessions caps the number of cached session handles.
	DefaultMaxSessions = 256

	// DefaultSessionTTL evicts idle session handles.
	DefaultSessionTTL = 30 * time.Minute
)

// RuntimeConfig configures the session runtime.
type RuntimeConfig struct {
	MaxSessions int
	SessionTTL  time.Duration

	// AgentOptions is applied to every agent the runtime creates.
	AgentOptions []Option
}

func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	return c
}

// sessionHandle pairs an agent with its per-session lock. refs counts
// in-flight messages so an active handle never leaves the runtime's sight
// even when the cache has dropped or not yet admitted it.
type sessionHandle struct {
	mu    sync.Mutex
	agent *Agent
	refs  int
}

// Runtime owns the per-session agents. Each session is bound to one memory
// manager and one mutex, so messages within a session run strictly in
// arrival order while distinct sessions proceed in parallel.
type Runtime struct {
	client   llm.Client
	registry *Registry
	svc      *memory.Service
	config   RuntimeConfig
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*sessionHandle
	cache  *ristretto.Cache
}

// NewRuntime creates a session runtime over a shared memory service.
func NewRuntime(client llm.Client, registry *Registry, svc *memory.Service, config RuntimeConfig, logger *slog.Logger) (*Runtime, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(config.MaxSessions) * 10,
		MaxCost:     int64(config.MaxSessions),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: session cache: %w", err)
	}

	return &Runtime{
		client:   client,
		registry: registry,
		svc:      svc,
		config:   config,
		logger:   logger,
		active:   make(map[string]*sessionHandle),
		cache:    cache,
	}, nil
}

// DMSessionID returns the session key for a direct conversation with a user.
func DMSessionID(userID string) string {
	return "dm_" + userID
}

// HandleMessage routes one message to its session's agent. Messages for the
// same session are serialized; the first message's user binds the session's
// memory manager.
func (r *Runtime) HandleMessage(ctx context.Context, sessionID, userID string, input Input) (*Output, error) {
	handle := r.acquire(sessionID, userID)
	defer r.release(sessionID, handle)

	handle.mu.Lock()
	defer handle.mu.Unlock()
	return handle.agent.ProcessMessage(ctx, input)
}

// acquire resolves the session's handle, preferring an in-flight one over
// the cache. The cache admits entries asynchronously, so the active map is
// the source of truth whenever any message for the session is running.
func (r *Runtime) acquire(sessionID, userID string) *sessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.active[sessionID]
	if !ok {
		if cached, hit := r.cache.Get(sessionID); hit {
			handle = cached.(*sessionHandle)
		} else {
			handle = r.newHandle(sessionID, userID)
			r.logger.Debug("session created", "session_id", sessionID, "user_id", userID)
		}
		r.active[sessionID] = handle
	}
	handle.refs++
	return handle
}

func (r *Runtime) release(sessionID string, handle *sessionHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle.refs--
	if handle.refs <= 0 {
		delete(r.active, sessionID)
		r.cache.SetWithTTL(sessionID, handle, 1, r.config.SessionTTL)
	}
}

func (r *Runtime) newHandle(sessionID, userID string) *sessionHandle {
	mem := r.svc.ForSession(sessionID, userID)
	opts := append([]Option{WithLogger(r.logger)}, r.config.AgentOptions...)
	return &sessionHandle{agent: NewAgent(r.client, r.registry, mem, opts...)}
}

// Close releases the session cache.
func (r *Runtime) Close() {
	r.cache.Close()
}
