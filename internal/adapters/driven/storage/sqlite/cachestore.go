package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
)

// cacheStore implements driven.CacheStore over the analysis_cache table.
type cacheStore struct {
	store *Store
}

var _ driven.CacheStore = (*cacheStore)(nil)

// Get returns the entry for a cache key. Expiry is evaluated at read
// time: an expired entry reports ErrNotFound without being deleted.
func (s *cacheStore) Get(ctx context.Context, cacheKey string, now time.Time) (*domain.CacheEntry, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT cache_key, query_type, query_text, context_fingerprint,
		       response, response_metadata, created_at, expires_at
		FROM analysis_cache WHERE cache_key = ?
	`, cacheKey)

	var entry domain.CacheEntry
	var metadataJSON, createdAt, expiresAt string
	err := row.Scan(&entry.CacheKey, &entry.QueryType, &entry.QueryText,
		&entry.ContextFingerprint, &entry.Response, &metadataJSON,
		&createdAt, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cache entry: %w", err)
	}

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &entry.ResponseMetadata); err != nil {
			return nil, fmt.Errorf("unmarshaling response metadata: %w", err)
		}
	}
	entry.CreatedAt = parseTime(createdAt)
	entry.ExpiresAt = parseTime(expiresAt)

	if entry.Expired(now) {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// Put stores an entry, replacing any previous entry under the same key.
func (s *cacheStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	if entry == nil || entry.CacheKey == "" {
		return domain.ErrInvalidInput
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.CreatedAt.Add(domain.DefaultCacheTTL)
	}

	metadataJSON, err := json.Marshal(entry.ResponseMetadata)
	if err != nil {
		return fmt.Errorf("marshalling response metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO analysis_cache
			(cache_key, query_type, query_text, context_fingerprint,
			 response, response_metadata, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			query_type = excluded.query_type,
			query_text = excluded.query_text,
			context_fingerprint = excluded.context_fingerprint,
			response = excluded.response,
			response_metadata = excluded.response_metadata,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, entry.CacheKey, entry.QueryType, entry.QueryText, entry.ContextFingerprint,
		entry.Response, string(metadataJSON),
		formatTime(entry.CreatedAt), formatTime(entry.ExpiresAt))

	if err != nil {
		return fmt.Errorf("saving cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes entries past their expiry. Returns the number
// deleted.
func (s *cacheStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM analysis_cache WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired cache entries: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking deleted rows: %w", err)
	}
	return int(affected), nil
}
