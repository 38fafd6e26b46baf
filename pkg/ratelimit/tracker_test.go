package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTracker_UpdateFromHeaders(t *testing.T) {
	store := NewMemoryStore()
	tracker := NewTracker(store, zerolog.Nop())

	headers := http.Header{}
	headers.Set(HeaderCallLimit, "32/40")

	if err := tracker.UpdateFromHeaders(context.Background(), headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error: %v", err)
	}

	state, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if state == nil {
		t.Fatal("Expected stored state, got nil")
	}
	if state.Used != 32 || state.Bucket != 40 {
		t.Errorf("state = %d/%d, want 32/40", state.Used, state.Bucket)
	}
}

func TestTracker_UpdateFromHeaders_AbsentHeader(t *testing.T) {
	store := NewMemoryStore()
	tracker := NewTracker(store, zerolog.Nop())

	if err := tracker.UpdateFromHeaders(context.Background(), http.Header{}); err != nil {
		t.Fatalf("UpdateFromHeaders() error: %v", err)
	}

	state, _ := store.Get(context.Background())
	if state != nil {
		t.Errorf("Expected no state for responses without the header, got %+v", state)
	}
}

func TestTracker_Wait_NoState(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), zerolog.Nop())

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() with no state took %v, want immediate return", elapsed)
	}
}

func TestTracker_Wait_Throttles(t *testing.T) {
	store := NewMemoryStore()
	store.Set(context.Background(), &State{
		Used:       40,
		Bucket:     40,
		LastUpdate: time.Now(),
	})
	tracker := NewTracker(store, zerolog.Nop())

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}

	want := time.Duration(ThrottleHeadroom) * LeakInterval
	if elapsed := time.Since(start); elapsed < want {
		t.Errorf("Wait() returned after %v, want at least %v", elapsed, want)
	}
}

func TestTracker_Wait_StaleStateIgnored(t *testing.T) {
	store := NewMemoryStore()
	store.Set(context.Background(), &State{
		Used:       40,
		Bucket:     40,
		LastUpdate: time.Now().Add(-2 * StaleAfter),
	})
	tracker := NewTracker(store, zerolog.Nop())

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() with stale state took %v, want immediate return", elapsed)
	}
}

func TestTracker_Wait_ContextCancelled(t *testing.T) {
	store := NewMemoryStore()
	store.Set(context.Background(), &State{
		Used:       40,
		Bucket:     40,
		LastUpdate: time.Now(),
	})
	tracker := NewTracker(store, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tracker.Wait(ctx); err == nil {
		t.Error("Wait() = nil, want context error")
	}
}
