package shortterm

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addTurns(t *testing.T, store *Store, sessionID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := store.Add(ctx, sessionID, "user-1", role, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
}

func TestRecentReturnsLatestInOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	addTurns(t, store, "chan-1", 10)

	turns, err := store.Recent(ctx, "chan-1", 4)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}

	// Latest 4 of 10, oldest first.
	for i, turn := range turns {
		want := fmt.Sprintf("message %d", 6+i)
		if turn.Content != want {
			t.Errorf("turn %d: got %q, want %q", i, turn.Content, want)
		}
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].Sequence <= turns[i-1].Sequence {
			t.Errorf("sequences not strictly increasing: %d then %d",
				turns[i-1].Sequence, turns[i].Sequence)
		}
	}
}

func TestRecentFewerThanLimit(t *testing.T) {
	store := openTestStore(t)
	addTurns(t, store, "chan-1", 3)

	turns, err := store.Recent(context.Background(), "chan-1", 25)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(turns) != 3 {
		t.Errorf("expected all 3 turns, got %d", len(turns))
	}
}

func TestTrimKeepsMostRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	addTurns(t, store, "chan-1", 10)

	if err := store.Trim(ctx, "chan-1", 4); err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	count, err := store.Count(ctx, "chan-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 turns after trim, got %d", count)
	}

	turns, err := store.Recent(ctx, "chan-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	for i, turn := range turns {
		want := fmt.Sprintf("message %d", 6+i)
		if turn.Content != want {
			t.Errorf("turn %d: got %q, want %q", i, turn.Content, want)
		}
	}
}

func TestTrimBelowWatermarkIsNoop(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	addTurns(t, store, "chan-1", 3)

	if err := store.Trim(ctx, "chan-1", 10); err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	count, err := store.Count(ctx, "chan-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 turns untouched, got %d", count)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	addTurns(t, store, "chan-1", 6)
	addTurns(t, store, "chan-2", 2)

	if err := store.Clear(ctx, "chan-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	count, err := store.Count(ctx, "chan-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected chan-1 empty, got %d", count)
	}

	count, err = store.Count(ctx, "chan-2")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected chan-2 untouched with 2 turns, got %d", count)
	}
}

func TestSequenceSurvivesTrim(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	addTurns(t, store, "chan-1", 5)

	before, err := store.Recent(ctx, "chan-1", 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}

	if err := store.Trim(ctx, "chan-1", 2); err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	addTurns(t, store, "chan-1", 1)

	after, err := store.Recent(ctx, "chan-1", 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if after[0].Sequence <= before[0].Sequence {
		t.Errorf("sequence went backwards after trim: %d then %d",
			before[0].Sequence, after[0].Sequence)
	}
}
