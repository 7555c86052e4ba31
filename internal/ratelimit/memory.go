package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process counter store. It is the fallback when no
// Redis address is configured, and the substitute used in tests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow

	// now is injectable for tests.
	now func() time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}
