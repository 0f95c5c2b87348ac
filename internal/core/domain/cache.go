package domain

import "time"

// DefaultCacheTTL is how long a cached answer stays fresh.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CacheEntry is a cached analysis answer.
type CacheEntry struct {
	// CacheKey is the unique fingerprint of query + context.
	CacheKey string

	// QueryType classifies the question (e.g. "general", "fiscal").
	QueryType string

	// QueryText is the original question, kept for diagnostics.
	QueryText string

	// ContextFingerprint identifies the retrieved or constrained
	// context the answer was grounded on.
	ContextFingerprint string

	// Response is the cached answer text.
	Response string

	// ResponseMetadata carries generation details (model, chunk ids).
	ResponseMetadata map[string]string

	// CreatedAt is when the entry was written.
	CreatedAt time.Time

	// ExpiresAt is when the entry becomes stale. Lookups past it are
	// treated as misses; no background sweep is required.
	ExpiresAt time.Time
}

// Expired reports whether the entry is stale at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
