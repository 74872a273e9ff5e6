package longterm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/memory/embedder/mock"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("", mock.New(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

func TestSaveAndSearchRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, "User's favorite color is teal", memory.TypeEpisodic, 5,
		map[string]string{"user_id": "u1"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Fatal("Save returned empty id")
	}

	results, err := store.Search(ctx, "User's favorite color is teal", 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0] != "User's favorite color is teal" {
		t.Errorf("top result = %q, want the saved text", results[0])
	}
}

func TestSearchTypeFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mustSave(t, store, "weekly standup notes", memory.TypeEpisodic, map[string]string{"user_id": "u1"})
	mustSave(t, store, "weekly diary entry", memory.TypeSummary, map[string]string{"user_id": "u1"})

	results, err := store.Search(ctx, "weekly", 10, memory.TypeSummary)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 summary result, got %d: %v", len(results), results)
	}
	if results[0] != "weekly diary entry" {
		t.Errorf("got %q, want the summary record", results[0])
	}
}

func TestGetCoreFactsScopedToUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mustSave(t, store, "Name is Alice", memory.TypeCoreFact, map[string]string{"user_id": "u1"})
	mustSave(t, store, "Name is Bob", memory.TypeCoreFact, map[string]string{"user_id": "u2"})
	mustSave(t, store, "Likes hiking", memory.TypeEpisodic, map[string]string{"user_id": "u1"})

	facts, err := store.GetCoreFacts(ctx, "u1", 15)
	if err != nil {
		t.Fatalf("GetCoreFacts failed: %v", err)
	}
	if len(facts) != 1 || facts[0] != "Name is Alice" {
		t.Errorf("got %v, want only u1's core fact", facts)
	}
}

func TestSearchLimitAboveDocCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mustSave(t, store, "only record", memory.TypeGeneral, nil)

	results, err := store.Search(ctx, "record", 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestSearchEmptyStore(t *testing.T) {
	store := openTestStore(t)

	results, err := store.Search(context.Background(), "anything", 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id := mustSave(t, store, "to be removed", memory.TypeEpisodic, map[string]string{"user_id": "u1"})

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results, err := store.Search(ctx, "to be removed", 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("record still present after delete: %v", results)
	}
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.Delete(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteLookupFailureIsNotNotFound(t *testing.T) {
	store := openTestStore(t)

	// An empty id is rejected by the collection before any lookup happens.
	// That is a malformed request, not a missing record.
	err := store.Delete(context.Background(), "")
	if err == nil {
		t.Fatal("expected an error for an empty id")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("lookup failure reported as ErrNotFound: %v", err)
	}
}

func TestSaveRejectsInvalidType(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Save(context.Background(), "text", memory.RecordType("bogus"), 5, nil)
	if err == nil {
		t.Fatal("expected error for invalid record type")
	}
}

func TestSaveClampsImportance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "very important", memory.TypeCoreFact, 99, map[string]string{"user_id": "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := store.SearchRecords(ctx, "very important", 1, nil)
	if err != nil {
		t.Fatalf("SearchRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Importance != 10 {
		t.Errorf("importance = %d, want clamped to 10", records[0].Importance)
	}
}

func TestSaveStampsDate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mustSave(t, store, "dated entry", memory.TypeSummary, map[string]string{"user_id": "u1"})

	today := time.Now().Format("2006-01-02")
	entries, err := store.GetByFilter(ctx, map[string]string{
		"user_id": "u1",
		"type":    string(memory.TypeSummary),
		"date":    today,
	}, 10)
	if err != nil {
		t.Fatalf("GetByFilter failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected the entry filed under today's date, got %v", entries)
	}
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mustSave(t, store, "fact one", memory.TypeCoreFact, map[string]string{"user_id": "u1"})
	mustSave(t, store, "fact two", memory.TypeCoreFact, map[string]string{"user_id": "u1"})
	mustSave(t, store, "event", memory.TypeEpisodic, map[string]string{"user_id": "u1"})
	mustSave(t, store, "someone else's fact", memory.TypeCoreFact, map[string]string{"user_id": "u2"})

	stats, err := store.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[memory.TypeCoreFact] != 2 {
		t.Errorf("core facts = %d, want 2", stats[memory.TypeCoreFact])
	}
	if stats[memory.TypeEpisodic] != 1 {
		t.Errorf("episodic = %d, want 1", stats[memory.TypeEpisodic])
	}
	if stats[memory.TypeSummary] != 0 {
		t.Errorf("summaries = %d, want 0", stats[memory.TypeSummary])
	}
}

func mustSave(t *testing.T, store *Store, text string, typ memory.RecordType, metadata map[string]string) string {
	t.Helper()
	id, err := store.Save(context.Background(), text, typ, 5, metadata)
	if err != nil {
		t.Fatalf("Save(%q) failed: %v", text, err)
	}
	return id
}
