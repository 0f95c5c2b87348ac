package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheEntry_Expired(t *testing.T) {
	now := time.Now()
	entry := &CacheEntry{ExpiresAt: now}

	assert.False(t, entry.Expired(now.Add(-time.Second)))
	assert.True(t, entry.Expired(now), "expiry instant itself is stale")
	assert.True(t, entry.Expired(now.Add(time.Second)))
}

func TestChunk_Embedded(t *testing.T) {
	assert.False(t, (&Chunk{}).Embedded())
	assert.False(t, (&Chunk{Embedding: []float32{}}).Embedded())
	assert.True(t, (&Chunk{Embedding: []float32{0.1}}).Embedded())
}
