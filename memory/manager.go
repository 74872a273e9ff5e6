package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/becomeliminal/recall-go-sdk/memory/shortterm"
)

// ShortTermStore is the bounded, ordered conversation log collaborator.
// Implemented by shortterm.Store.
type ShortTermStore interface {
	Add(ctx context.Context, sessionID, userID, role, content string) error
	Recent(ctx context.Context, sessionID string, limit int) ([]shortterm.Turn, error)
	Count(ctx context.Context, sessionID string) (int, error)
	Trim(ctx context.Context, sessionID string, limit int) error
	Clear(ctx context.Context, sessionID string) error
}

// LongTermStore is the unbounded, semantically searchable record store
// collaborator. Implemented by longterm.Store.
type LongTermStore interface {
	Save(ctx context.Context, text string, typ RecordType, importance int, metadata map[string]string) (string, error)
	Search(ctx context.Context, query string, limit int, typeFilter RecordType) ([]string, error)
	SearchRecords(ctx context.Context, query string, limit int, where map[string]string) ([]Record, error)
	GetByFilter(ctx context.Context, fields map[string]string, limit int) ([]string, error)
	GetCoreFacts(ctx context.Context, userID string, limit int) ([]string, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, userID string) (map[RecordType]int, error)
}

// Service bundles the shared memory backends. One Service serves all
// sessions; per-session access goes through Manager handles created with
// ForSession.
type Service struct {
	short      ShortTermStore
	long       LongTermStore
	summarizer Summarizer
	config     Config
	logger     *slog.Logger
}

// NewService creates a Service. The summarizer may be nil when the trim-only
// maintenance policy is configured. If logger is nil, the default slog
// logger is used.
func NewService(short ShortTermStore, long LongTermStore, summarizer Summarizer, config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		short:      short,
		long:       long,
		summarizer: summarizer,
		config:     config.withDefaults(),
		logger:     logger,
	}
}

// ShortTerm exposes the short-term store for tools and gateways.
func (s *Service) ShortTerm() ShortTermStore { return s.short }

// LongTerm exposes the long-term store for tools and gateways.
func (s *Service) LongTerm() LongTermStore { return s.long }

// ForSession binds the service to one session/user pairing.
func (s *Service) ForSession(sessionID, userID string) *Manager {
	return &Manager{svc: s, sessionID: sessionID, userID: userID}
}

// Manager composes the two memory tiers for a single session: it builds the
// context injected into each model call, records new turns, and triggers
// maintenance when the short-term log crosses the configured threshold.
type Manager struct {
	svc       *Service
	sessionID string
	userID    string
}

// SessionID returns the session partition key this manager is bound to.
func (m *Manager) SessionID() string { return m.sessionID }

// UserID returns the user this manager is bound to.
func (m *Manager) UserID() string { return m.userID }

// Context is the assembled memory block for one model call: the user's core
// facts first, then search hits relevant to the current input, with hits
// whose text exactly equals a core fact removed. Both lists preserve their
// own retrieval order. Rendering is a boundary concern; the two ordered
// lists plus the dedup rule are the contract.
type Context struct {
	CoreFacts []string
	Relevant  []string
}

// Empty reports whether the context carries no memories at all.
func (c *Context) Empty() bool {
	return len(c.CoreFacts) == 0 && len(c.Relevant) == 0
}

// Render formats the context for prompt injection.
func (c *Context) Render() string {
	if c.Empty() {
		return ""
	}
	var b strings.Builder
	if len(c.CoreFacts) > 0 {
		b.WriteString("## CORE FACTS (Permanent User Data):\n")
		for _, fact := range c.CoreFacts {
			b.WriteString("- ")
			b.WriteString(fact)
			b.WriteString("\n")
		}
	}
	if len(c.Relevant) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## RELEVANT PAST MEMORIES (Contextual):\n")
		for _, hit := range c.Relevant {
			b.WriteString("- ")
			b.WriteString(hit)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// GetContext fetches the user's core facts and, when userInput is non-empty,
// the semantically relevant long-term hits for it. Both lookups are scoped
// to this manager's user; other users' memories never enter the context even
// when sessions are shared. A hit byte-identical to an included core fact is
// dropped; the dedup is exact string equality, not semantic.
func (m *Manager) GetContext(ctx context.Context, userInput string) (*Context, error) {
	cfg := m.svc.config

	coreFacts, err := m.svc.long.GetCoreFacts(ctx, m.userID, cfg.CoreFactLimit)
	if err != nil {
		return nil, fmt.Errorf("memory: get core facts: %w", err)
	}

	out := &Context{CoreFacts: coreFacts}
	if userInput == "" {
		return out, nil
	}

	hits, err := m.svc.long.SearchRecords(ctx, userInput, cfg.SearchLimit, map[string]string{"user_id": m.userID})
	if err != nil {
		return nil, fmt.Errorf("memory: search relevant memories: %w", err)
	}

	known := make(map[string]bool, len(coreFacts))
	for _, fact := range coreFacts {
		known[fact] = true
	}
	for _, hit := range hits {
		if known[hit.Text] {
			continue
		}
		out.Relevant = append(out.Relevant, hit.Text)
	}
	return out, nil
}

// RecentHistory returns the session's recent turns, oldest first.
func (m *Manager) RecentHistory(ctx context.Context) ([]shortterm.Turn, error) {
	return m.svc.short.Recent(ctx, m.sessionID, m.svc.config.HistoryLimit)
}

// AddInteraction durably appends the user turn then the assistant turn, and
// runs maintenance when the session's turn count exceeds the threshold.
//
// Maintenance failures never surface as errors here: the two turns are
// already committed, the failure is logged, and the count simply stays above
// threshold so maintenance retries on a later interaction.
func (m *Manager) AddInteraction(ctx context.Context, userText, assistantText string) error {
	if err := m.svc.short.Add(ctx, m.sessionID, m.userID, shortterm.RoleUser, userText); err != nil {
		return fmt.Errorf("memory: append user turn: %w", err)
	}
	if err := m.svc.short.Add(ctx, m.sessionID, m.userID, shortterm.RoleAssistant, assistantText); err != nil {
		return fmt.Errorf("memory: append assistant turn: %w", err)
	}

	count, err := m.svc.short.Count(ctx, m.sessionID)
	if err != nil {
		m.svc.logger.Warn("memory: turn count failed, skipping maintenance check",
			"err", err, "session_id", m.sessionID)
		return nil
	}
	if count > m.svc.config.MaintenanceThreshold {
		if err := m.Maintain(ctx, "milestone_reached"); err != nil {
			m.svc.logger.Error("memory: maintenance failed",
				"err", err, "session_id", m.sessionID, "policy", m.svc.config.Policy)
		}
	}
	return nil
}

// Maintain compresses older short-term history according to the configured
// policy. Safe to call from a scheduler with a reason of "scheduled".
func (m *Manager) Maintain(ctx context.Context, reason string) error {
	switch m.svc.config.Policy {
	case PolicyTrim:
		return m.maintainTrim(ctx)
	default:
		return m.maintainSummarize(ctx, reason)
	}
}

func (m *Manager) maintainTrim(ctx context.Context) error {
	if err := m.svc.short.Trim(ctx, m.sessionID, m.svc.config.TrimWatermark); err != nil {
		return err
	}
	m.svc.logger.Info("memory: trimmed short-term history",
		"session_id", m.sessionID, "watermark", m.svc.config.TrimWatermark)
	return nil
}

// maintainSummarize writes a diary-style summary of the recent window to
// long-term memory, then trims. The trim only happens after the summary is
// durably saved, so a failure at any step leaves the full history in place
// for the next attempt.
func (m *Manager) maintainSummarize(ctx context.Context, reason string) error {
	if m.svc.summarizer == nil {
		return fmt.Errorf("memory: summarize policy configured without a summarizer")
	}

	turns, err := m.svc.short.Recent(ctx, m.sessionID, m.svc.config.SummaryWindow)
	if err != nil {
		return fmt.Errorf("memory: load summary window: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}

	summary, err := m.svc.summarizer.Summarize(ctx, turns)
	if err != nil {
		return fmt.Errorf("memory: summarize: %w", err)
	}
	if summary == "" {
		return nil
	}

	_, err = m.svc.long.Save(ctx, summary, TypeSummary, 7, map[string]string{
		"user_id":            m.userID,
		"session_id":         m.sessionID,
		"maintenance_reason": reason,
	})
	if err != nil {
		return fmt.Errorf("memory: save summary: %w", err)
	}

	if err := m.svc.short.Trim(ctx, m.sessionID, m.svc.config.SummarizeWatermark); err != nil {
		return fmt.Errorf("memory: trim after summary: %w", err)
	}

	m.svc.logger.Info("memory: diary updated and history trimmed",
		"session_id", m.sessionID,
		"reason", reason,
		"watermark", m.svc.config.SummarizeWatermark,
		"summary_len", len(summary),
	)
	return nil
}
