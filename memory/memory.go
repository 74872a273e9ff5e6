package memory

import (
	"context"

	"github.com/becomeliminal/recall-go-sdk/memory/shortterm"
)

// RecordType classifies a long-term record.
//
// core_fact records are always injected into context; every other type is
// reachable only through retrieval (semantic search or metadata filters).
// A record's type is set once at creation and never mutated.
type RecordType string

const (
	// TypeCoreFact is a permanent user detail (name, preferences). Always
	// loaded into context regardless of the query.
	TypeCoreFact RecordType = "core_fact"

	// TypeEpisodic is a significant event or conversation highlight,
	// retrieved via explicit search only.
	TypeEpisodic RecordType = "episodic"

	// TypeGeneral is any other saved information, retrieved via search.
	TypeGeneral RecordType = "general"

	// TypeSummary is a compressed account of older short-term history,
	// written by maintenance.
	TypeSummary RecordType = "summary"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case TypeCoreFact, TypeEpisodic, TypeGeneral, TypeSummary:
		return true
	}
	return false
}

// Record is a typed long-term memory entry. Records are immutable once
// written; the only supported mutation is delete-by-id.
type Record struct {
	ID         string
	Text       string
	Type       RecordType
	Importance int               // 1..10, higher = more important
	Metadata   map[string]string // user_id, category, date, session_id, ...
}

// Embedder converts text to a fixed-dimension vector. The same embedder
// (model and dimensionality) must be used for save and search or similarity
// is meaningless; the long-term store encodes the embedder signature into
// its collection name to enforce this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Summarizer condenses a window of conversation turns into a durable
// diary-style summary. Implemented by LLMSummarizer; tests substitute fakes.
type Summarizer interface {
	Summarize(ctx context.Context, turns []shortterm.Turn) (string, error)
}

// MaintenancePolicy selects how add-interaction maintenance compresses
// short-term history once the threshold is crossed. Exactly one policy runs
// per maintenance pass; they are never combined.
type MaintenancePolicy string

const (
	// PolicySummarize writes a summary record to long-term memory, then
	// trims short-term history to SummarizeWatermark.
	PolicySummarize MaintenancePolicy = "summarize"

	// PolicyTrim only trims short-term history to TrimWatermark.
	PolicyTrim MaintenancePolicy = "trim"
)

// Config holds memory subsystem tuning. Zero values fall back to the
// defaults below; none of the figures are contractual invariants.
type Config struct {
	// HistoryLimit is the number of recent turns injected per model call.
	HistoryLimit int

	// CoreFactLimit caps the core facts fetched into context.
	CoreFactLimit int

	// SearchLimit caps the relevant-memory hits fetched into context.
	SearchLimit int

	// MaintenanceThreshold is the short-term turn count above which
	// maintenance runs.
	MaintenanceThreshold int

	// SummaryWindow is the number of recent turns fed to the summarizer.
	SummaryWindow int

	// SummarizeWatermark is the post-maintenance turn count under
	// PolicySummarize. Higher than TrimWatermark so the turns around the
	// summarized window survive for immediate continuity.
	SummarizeWatermark int

	// TrimWatermark is the post-maintenance turn count under PolicyTrim.
	TrimWatermark int

	// Policy selects the maintenance strategy. Defaults to PolicySummarize.
	Policy MaintenancePolicy
}

// DefaultConfig returns the tuning used by the local SDK.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:         25,
		CoreFactLimit:        15,
		SearchLimit:          5,
		MaintenanceThreshold: 50,
		SummaryWindow:        50,
		SummarizeWatermark:   35,
		TrimWatermark:        30,
		Policy:               PolicySummarize,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.CoreFactLimit <= 0 {
		c.CoreFactLimit = def.CoreFactLimit
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = def.SearchLimit
	}
	if c.MaintenanceThreshold <= 0 {
		c.MaintenanceThreshold = def.MaintenanceThreshold
	}
	if c.SummaryWindow <= 0 {
		c.SummaryWindow = def.SummaryWindow
	}
	if c.SummarizeWatermark <= 0 {
		c.SummarizeWatermark = def.SummarizeWatermark
	}
	if c.TrimWatermark <= 0 {
		c.TrimWatermark = def.TrimWatermark
	}
	if c.Policy == "" {
		c.Policy = def.Policy
	}
	return c
}
