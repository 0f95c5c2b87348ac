package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
)

// Ensure CacheStore implements the interface.
var _ driven.CacheStore = (*CacheStore)(nil)

// CacheStore is an in-memory implementation of driven.CacheStore.
type CacheStore struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
}

// NewCacheStore creates a new in-memory cache store.
func NewCacheStore() *CacheStore {
	return &CacheStore{entries: make(map[string]domain.CacheEntry)}
}

// Get retrieves a live entry; expired entries are reported as misses.
func (s *CacheStore) Get(_ context.Context, cacheKey string, now time.Time) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[cacheKey]
	if !ok || entry.Expired(now) {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// Put creates or overwrites an entry.
func (s *CacheStore) Put(_ context.Context, entry *domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = e.CreatedAt.Add(domain.DefaultCacheTTL)
	}
	s.entries[e.CacheKey] = e
	return nil
}

// DeleteExpired removes entries past their expiry.
func (s *CacheStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}
