package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store is an expiring counter store. Incr is atomic: the first hit of a key
// starts its window and later hits only increment.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	// TTL returns the remaining lifetime of a key, or zero when it is absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Set(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory. Expired keys are dropped
// lazily on access and in bulk by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]memoryEntry
}

func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = memoryEntry{expiresAt: now.Add(window)}
	}
	entry.count++
	s.entries[key] = entry
	return entry.count, entry.expiresAt.Sub(now), nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	entry, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	if !now.Before(entry.expiresAt) {
		delete(s.entries, key)
		return 0, nil
	}
	return entry.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{count: 1, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// Sweep removes every expired key and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
