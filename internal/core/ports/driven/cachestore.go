package driven

import (
	"context"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// CacheStore persists analysis cache entries.
//
// Put is an idempotent upsert: concurrent misses on the same key may
// both recompute and the last writer simply overwrites with an
// equivalent answer. No locking is required of callers.
type CacheStore interface {
	// Get retrieves a live entry. An entry whose expiry has passed at
	// the given instant is treated as a miss and reported as
	// domain.ErrNotFound, never returned stale.
	Get(ctx context.Context, cacheKey string, now time.Time) (*domain.CacheEntry, error)

	// Put creates or overwrites an entry.
	Put(ctx context.Context, entry *domain.CacheEntry) error

	// DeleteExpired removes entries past their expiry. Optional
	// maintenance; Get never returns stale entries regardless.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
