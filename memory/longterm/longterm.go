// Package longterm provides the unbounded, semantically indexed store of
// typed memory records, backed by chromem-go (a pure Go embedded vector
// database, cosine distance).
//
// Records are append-only: save and delete-by-id are the only writes, there
// is no update-in-place. Embeddings are provided by an injected Embedder;
// the collection name carries the embedding dimensionality and a schema
// version, so switching the embedding model maps to a fresh collection
// instead of silently mixing incompatible vectors.
package longterm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// ErrNotFound is returned by Delete when no record has the given id.
var ErrNotFound = errors.New("longterm: record not found")

// statsScanLimit caps the per-type scan used by Stats.
const statsScanLimit = 1000

// Store is the chromem-backed long-term memory store.
type Store struct {
	db       *chromem.DB
	col      *chromem.Collection
	embedder memory.Embedder
	logger   *slog.Logger
}

// Open creates a Store at the given path. An empty path keeps everything
// in memory (tests); otherwise the database persists to disk.
// If logger is nil, the default slog logger is used.
func Open(path string, embedder memory.Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("longterm: open database: %w", err)
		}
	}

	// Embeddings are always supplied by the caller, so the collection gets
	// no embedding function of its own.
	name := fmt.Sprintf("memories_v1_d%d", embedder.Dimensions())
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("longterm: create collection: %w", err)
	}

	return &Store{db: db, col: col, embedder: embedder, logger: logger}, nil
}

// Save embeds text, assigns a fresh id and persists the record. Returns the
// new id. If metadata lacks a "date" field, the current date is stamped.
func (s *Store) Save(ctx context.Context, text string, typ memory.RecordType, importance int, metadata map[string]string) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("longterm: invalid record type %q", typ)
	}
	if importance < 1 {
		importance = 1
	} else if importance > 10 {
		importance = 10
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("longterm: embed text: %w", err)
	}

	id := uuid.NewString()

	docMeta := map[string]string{
		"type":       string(typ),
		"importance": strconv.Itoa(importance),
	}
	for k, v := range metadata {
		docMeta[k] = v
	}
	if docMeta["date"] == "" {
		docMeta["date"] = time.Now().Format("2006-01-02")
	}

	err = s.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: vector,
		Metadata:  docMeta,
	})
	if err != nil {
		return "", fmt.Errorf("longterm: add document: %w", err)
	}

	s.logger.Info("longterm: saved record",
		"id", id,
		"type", typ,
		"importance", importance,
		"text_len", len(text),
	)
	return id, nil
}

// Search embeds the query and returns up to limit record texts ranked by
// descending cosine similarity. When typeFilter is non-empty, only records
// of that type are eligible.
func (s *Store) Search(ctx context.Context, query string, limit int, typeFilter memory.RecordType) ([]string, error) {
	var where map[string]string
	if typeFilter != "" {
		where = map[string]string{"type": string(typeFilter)}
	}
	records, err := s.SearchRecords(ctx, query, limit, where)
	if err != nil {
		return nil, err
	}
	return texts(records), nil
}

// SearchRecords embeds the query and returns up to limit full records ranked
// by descending cosine similarity, restricted to exact metadata matches in
// where (nil for no restriction). Callers that only need display text should
// use Search.
func (s *Store) SearchRecords(ctx context.Context, query string, limit int, where map[string]string) ([]memory.Record, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("longterm: embed query: %w", err)
	}
	return s.queryEmbedding(ctx, vector, limit, where)
}

// GetByFilter returns record texts whose metadata matches all given
// field/value pairs exactly. No vector comparison; callers must not rely on
// any particular ordering of the result.
func (s *Store) GetByFilter(ctx context.Context, fields map[string]string, limit int) ([]string, error) {
	records, err := s.getByFilter(ctx, fields, limit)
	if err != nil {
		return nil, err
	}
	return texts(records), nil
}

// GetCoreFacts returns the texts of up to limit core_fact records for the
// user. Core facts are always injected into context by the memory manager.
func (s *Store) GetCoreFacts(ctx context.Context, userID string, limit int) ([]string, error) {
	return s.GetByFilter(ctx, map[string]string{
		"user_id": userID,
		"type":    string(memory.TypeCoreFact),
	}, limit)
}

// Delete removes the record with the given id. Returns ErrNotFound when no
// such record exists; other lookup failures pass through unchanged.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.col.GetByID(ctx, id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("longterm: look up record: %w", err)
	}
	if err := s.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("longterm: delete record: %w", err)
	}
	s.logger.Info("longterm: deleted record", "id", id)
	return nil
}

// Stats returns the number of stored records per type, optionally scoped to
// a user (empty userID counts all users). Counts are capped at
// statsScanLimit per type.
func (s *Store) Stats(ctx context.Context, userID string) (map[memory.RecordType]int, error) {
	stats := make(map[memory.RecordType]int, 4)
	for _, typ := range []memory.RecordType{
		memory.TypeCoreFact, memory.TypeEpisodic, memory.TypeGeneral, memory.TypeSummary,
	} {
		fields := map[string]string{"type": string(typ)}
		if userID != "" {
			fields["user_id"] = userID
		}
		records, err := s.getByFilter(ctx, fields, statsScanLimit)
		if err != nil {
			return nil, err
		}
		stats[typ] = len(records)
	}
	return stats, nil
}

// getByFilter runs a filter-only scan. chromem's query API always ranks by
// similarity to a query vector, so a fixed unit basis vector is used; the
// resulting order is meaningless and deliberately not part of the contract.
func (s *Store) getByFilter(ctx context.Context, fields map[string]string, limit int) ([]memory.Record, error) {
	probe := make([]float32, s.embedder.Dimensions())
	probe[0] = 1
	return s.queryEmbedding(ctx, probe, limit, fields)
}

// queryEmbedding queries the collection, shrinking nResults until chromem
// accepts it. chromem rejects queries asking for more results than there are
// matching documents, and does not report the matching count up front, so
// the limit is walked down on that specific error.
func (s *Store) queryEmbedding(ctx context.Context, vector []float32, limit int, where map[string]string) ([]memory.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	if count := s.col.Count(); count == 0 {
		return nil, nil
	} else if limit > count {
		limit = count
	}

	var results []chromem.Result
	for nResults := limit; nResults >= 1; nResults-- {
		var err error
		results, err = s.col.QueryEmbedding(ctx, vector, nResults, where, nil)
		if err == nil {
			break
		}
		if isTooFewDocsError(err) {
			if nResults == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("longterm: query: %w", err)
	}

	records := make([]memory.Record, 0, len(results))
	for _, res := range results {
		records = append(records, recordFromResult(res))
	}
	return records, nil
}

// recordFromResult maps a chromem result back to a Record, splitting the
// reserved type/importance keys out of the stored metadata.
func recordFromResult(res chromem.Result) memory.Record {
	rec := memory.Record{
		ID:       res.ID,
		Text:     res.Content,
		Type:     memory.RecordType(res.Metadata["type"]),
		Metadata: make(map[string]string, len(res.Metadata)),
	}
	rec.Importance, _ = strconv.Atoi(res.Metadata["importance"])
	for k, v := range res.Metadata {
		if k == "type" || k == "importance" {
			continue
		}
		rec.Metadata[k] = v
	}
	return rec
}

func texts(records []memory.Record) []string {
	if len(records) == 0 {
		return nil
	}
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Text
	}
	return out
}

// isTooFewDocsError matches chromem's complaint when nResults exceeds the
// number of matching documents.
func isTooFewDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
