package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps window counters in process memory. Limits are enforced
// per replica.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, budget Budget, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		// First request, or the previous window is over: start a new one.
		w = &window{count: 1, resetAt: now.Add(budget.Window)}
		s.windows[key] = w
		return Decision{Allowed: true, Remaining: budget.MaxRequests - 1, ResetAt: w.resetAt}, nil
	}

	if w.count >= budget.MaxRequests {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: budget.MaxRequests - w.count, ResetAt: w.resetAt}, nil
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
