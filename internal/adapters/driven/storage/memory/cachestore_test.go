package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

func TestCacheStore_PutAndGet(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()
	now := time.Now()

	entry := &domain.CacheEntry{
		CacheKey:  "key-1",
		QueryType: "fiscal_analysis",
		QueryText: "qual o valor total?",
		Response:  "R$ 1.234,56",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.Put(ctx, entry))

	got, err := store.Get(ctx, "key-1", now)
	require.NoError(t, err)
	assert.Equal(t, "R$ 1.234,56", got.Response)
}

func TestCacheStore_Get_ExpiredIsMiss(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Put(ctx, &domain.CacheEntry{
		CacheKey:  "key-1",
		Response:  "stale",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}))

	_, err := store.Get(ctx, "key-1", now.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCacheStore_Put_Overwrites(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()
	now := time.Now()

	for _, resp := range []string{"first", "second"} {
		require.NoError(t, store.Put(ctx, &domain.CacheEntry{
			CacheKey:  "key-1",
			Response:  resp,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}))
	}

	got, err := store.Get(ctx, "key-1", now)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Response)
}

func TestCacheStore_Put_DefaultsTTL(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.CacheEntry{
		CacheKey: "key-1",
		Response: "answer",
	}))

	got, err := store.Get(ctx, "key-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, got.CreatedAt.Add(domain.DefaultCacheTTL), got.ExpiresAt)
}

func TestCacheStore_DeleteExpired(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Put(ctx, &domain.CacheEntry{
		CacheKey: "live", Response: "a", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, store.Put(ctx, &domain.CacheEntry{
		CacheKey: "stale", Response: "b", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	deleted, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.Get(ctx, "live", now)
	assert.NoError(t, err)
}
