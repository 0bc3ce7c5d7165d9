package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with a process-local map. It backs single
// instance deployments and tests; keys expire passively on read and can be
// swept by PurgeExpired.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

// TryCreate records the key if unseen or expired, under one lock acquisition
func (s *MemoryStore) TryCreate(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}

	s.entries[key] = now.Add(ttl)
	return true, nil
}

// Exists reports whether the key is within an unexpired window
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[key]
	return ok && time.Now().Before(expiry), nil
}

// PurgeExpired removes expired entries and returns how many were dropped
func (s *MemoryStore) PurgeExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for key, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
