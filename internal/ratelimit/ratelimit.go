// Package ratelimit provides fixed-window request counters keyed by
// (action, identifier). It is a defense-in-depth layer: counts may be
// slightly stale under concurrency and backend failures always fail open.
package ratelimit

import (
	"context"
	"log"
	"time"
)

// Store is the counter backend. Incr increments the key's fixed-window
// counter unconditionally (so windows self-expire even for denied calls),
// sets the window expiry on first increment, and returns the new count plus
// the time remaining in the window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// Limiter enforces per-(action, identifier) fixed-window limits.
type Limiter struct {
	store Store
}

func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Allow reports whether one more call for (action, id) fits inside the
// window. When denied it returns a retry-after hint in seconds. A store
// error never denies the call: tracking endpoints must not drop legitimate
// traffic on infra failure.
func (l *Limiter) Allow(ctx context.Context, action, id string, limit int, window time.Duration) (allowed bool, retryAfter int) {
	key := "rl:" + action + ":" + id
	count, remaining, err := l.store.Incr(ctx, key, window)
	if err != nil {
		log.Printf("rate limit backend unavailable for %s, failing open: %v", action, err)
		return true, 0
	}
	if count > int64(limit) {
		retry := int(remaining.Seconds())
		if retry < 1 {
			retry = 1
		}
		return false, retry
	}
	return true, 0
}
