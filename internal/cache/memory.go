package cache

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/quickquote/internal/model"
)

// memoryEntry holds one cached aggregate with its expiry.
type memoryEntry struct {
	value     model.AggregateResult
	expiresAt time.Time
}

// MemoryStore is the in-process Store. Expiry is lazy: an entry read
// past its TTL is discarded at read time, no background sweep runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Get returns the cached value if present and unexpired.
func (s *MemoryStore) Get(_ context.Context, key string) (*model.AggregateResult, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry.
		if cur, ok := s.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	v := e.value
	return &v, true
}

// Set stores the value under the key with the given TTL. The quote
// slice is copied so later caller mutations cannot reach the entry.
func (s *MemoryStore) Set(_ context.Context, key string, value *model.AggregateResult, ttl time.Duration) {
	stored := *value
	stored.Results = append([]model.Quote(nil), value.Results...)

	s.mu.Lock()
	s.entries[key] = memoryEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}
