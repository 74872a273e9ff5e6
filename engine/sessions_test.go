package engine

import (
	"context"
	"sync"
	"testing"
)

func TestDMSessionID(t *testing.T) {
	if got := DMSessionID("u1"); got != "dm_u1" {
		t.Errorf("DMSessionID = %q, want dm_u1", got)
	}
}

func TestRuntimeKeepsSessionHistory(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{textResponse("reply")}}
	svc, short := newTestMemory(t)
	runtime, err := NewRuntime(client, NewRegistry(), svc, RuntimeConfig{}, nil)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer runtime.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := runtime.HandleMessage(ctx, "chan-1", "u1", Input{UserMessage: "hi"}); err != nil {
			t.Fatalf("HandleMessage failed: %v", err)
		}
	}

	count, err := short.Count(ctx, "chan-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 turns across two messages, got %d", count)
	}

	// The second call's request must carry the first interaction as history.
	second := client.requests[1]
	if len(second.Messages) != 3 {
		t.Errorf("second request seeded %d messages, want 2 history + 1 current", len(second.Messages))
	}
}

func TestRuntimeSerializesConcurrentMessages(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{textResponse("reply")}}
	svc, short := newTestMemory(t)
	runtime, err := NewRuntime(client, NewRegistry(), svc, RuntimeConfig{}, nil)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer runtime.Close()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := runtime.HandleMessage(context.Background(), "chan-1", "u1", Input{UserMessage: "hi"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("HandleMessage failed: %v", err)
		}
	}

	// Serialized processing means every interaction persisted both turns.
	count, err := short.Count(context.Background(), "chan-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2*n {
		t.Errorf("expected %d turns, got %d", 2*n, count)
	}
}

func TestRuntimeIsolatesSessions(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{textResponse("reply")}}
	svc, short := newTestMemory(t)
	runtime, err := NewRuntime(client, NewRegistry(), svc, RuntimeConfig{}, nil)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer runtime.Close()

	ctx := context.Background()
	if _, err := runtime.HandleMessage(ctx, "chan-1", "u1", Input{UserMessage: "hi"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if _, err := runtime.HandleMessage(ctx, DMSessionID("u2"), "u2", Input{UserMessage: "hello"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	for _, tc := range []struct {
		session string
		want    int
	}{
		{"chan-1", 2},
		{"dm_u2", 2},
	} {
		count, err := short.Count(ctx, tc.session)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != tc.want {
			t.Errorf("session %s has %d turns, want %d", tc.session, count, tc.want)
		}
	}
}
