package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLMap is a small concurrency-safe map whose entries expire after a fixed TTL.
type TTLMap[V any] struct {
	mu   sync.RWMutex
	data map[string]entry[V]
	// gens counts deletions per key so a fill that raced a Delete can be dropped.
	gens map[string]uint64
	ttl  time.Duration
	now  func() time.Time
}

// NewTTLMap creates a TTLMap with the given entry lifetime.
func NewTTLMap[V any](ttl time.Duration) *TTLMap[V] {
	return &TTLMap[V]{
		data: make(map[string]entry[V]),
		gens: make(map[string]uint64),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the value stored under key if it has not expired.
func (m *TTLMap[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	var zero V
	if !ok || !m.now().Before(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

func (m *TTLMap[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry[V]{value: value, expiresAt: m.now().Add(m.ttl)}
}

// Generation returns the current generation of key. Take it before reading
// the source of truth and pass it to SetIfGeneration.
func (m *TTLMap[V]) Generation(key string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gens[key]
}

// SetIfGeneration stores value only when key has not been deleted since gen
// was taken. It reports whether the value was stored.
func (m *TTLMap[V]) SetIfGeneration(key string, value V, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[key] != gen {
		return false
	}
	m.data[key] = entry[V]{value: value, expiresAt: m.now().Add(m.ttl)}
	return true
}

// Delete drops key and bumps its generation. It is how mutations invalidate
// a cached view.
func (m *TTLMap[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.gens[key]++
}

// Purge removes all expired entries and returns how many were dropped.
func (m *TTLMap[V]) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.data {
		if !now.Before(e.expiresAt) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

func (m *TTLMap[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
