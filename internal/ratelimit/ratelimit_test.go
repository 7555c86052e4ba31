package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// errorStore simulates an unavailable backend.
type errorStore struct{}

func (errorStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("backend unavailable")
}

func TestFixedWindowLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	limiter := New(store)

	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		allowed, _ := limiter.Allow(ctx, "funnel_start", "203.0.113.5", 10, time.Minute)
		if !allowed {
			t.Fatalf("call %d denied, want allowed", i)
		}
	}

	allowed, retry := limiter.Allow(ctx, "funnel_start", "203.0.113.5", 10, time.Minute)
	if allowed {
		t.Fatal("11th call in window allowed, want denied")
	}
	if retry < 1 {
		t.Errorf("retry_after = %d, want >= 1", retry)
	}

	// After the window fully elapses the counter resets.
	now = now.Add(61 * time.Second)
	allowed, _ = limiter.Allow(ctx, "funnel_start", "203.0.113.5", 10, time.Minute)
	if !allowed {
		t.Error("call after window elapsed denied, want allowed")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := New(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, "funnel_step", "lead-a", 5, time.Minute)
	}
	if allowed, _ := limiter.Allow(ctx, "funnel_step", "lead-a", 5, time.Minute); allowed {
		t.Error("lead-a over limit, want denied")
	}

	// Other identifiers and other actions are unaffected.
	if allowed, _ := limiter.Allow(ctx, "funnel_step", "lead-b", 5, time.Minute); !allowed {
		t.Error("lead-b denied, want allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "funnel_status", "lead-a", 5, time.Minute); !allowed {
		t.Error("other action for lead-a denied, want allowed")
	}
}

func TestDeniedCallsStillCount(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	limiter := New(store)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		limiter.Allow(ctx, "track", "ip", 10, time.Minute)
	}

	// The denied calls incremented the counter too; the window still
	// expires on schedule rather than sliding.
	now = now.Add(61 * time.Second)
	if allowed, _ := limiter.Allow(ctx, "track", "ip", 10, time.Minute); !allowed {
		t.Error("window did not reset after elapse")
	}
}

func TestBackendFailureFailsOpen(t *testing.T) {
	limiter := New(errorStore{})

	for i := 0; i < 100; i++ {
		allowed, retry := limiter.Allow(context.Background(), "track", "ip", 1, time.Minute)
		if !allowed || retry != 0 {
			t.Fatalf("backend failure denied traffic: allowed=%v retry=%d", allowed, retry)
		}
	}
}
