package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// normaliseQuery collapses incidental formatting so that two renderings
// of the same question fingerprint identically.
func normaliseQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// contextFingerprint identifies the retrieval constraints an answer was
// grounded on. Filters are serialised in sorted key order so map
// iteration order never changes the fingerprint.
func contextFingerprint(filters domain.SearchFilters) string {
	if len(filters) == 0 {
		return "unfiltered"
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// cacheKey derives the deterministic analysis cache key.
func cacheKey(queryType, normalisedQuery, contextFP string) string {
	h := sha256.New()
	h.Write([]byte(queryType))
	h.Write([]byte{0})
	h.Write([]byte(normalisedQuery))
	h.Write([]byte{0})
	h.Write([]byte(contextFP))
	return hex.EncodeToString(h.Sum(nil))
}
