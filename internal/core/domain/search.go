package domain

import "time"

// SearchFilters restricts retrieval to chunks whose metadata matches
// every key exactly (AND-combination).
type SearchFilters map[string]string

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// MinSimilarity is the cosine similarity floor. Results scoring
	// below it are dropped rather than returned.
	MinSimilarity float64

	// Filters are exact-match metadata constraints.
	Filters SearchFilters
}

// SimilarityResult is a chunk plus its similarity score. Derived at
// query time, never persisted.
type SimilarityResult struct {
	// Chunk is the matched chunk, embedding included.
	Chunk Chunk

	// Similarity is the cosine similarity against the query vector.
	Similarity float64

	// DocumentMetadata is the owning document's filterable metadata.
	DocumentMetadata map[string]string
}

// Answer is the result of a RAG query.
type Answer struct {
	// Text is the generated answer.
	Text string

	// ContextItems are the retrieved chunks the answer is grounded on,
	// ordered by descending similarity.
	ContextItems []SimilarityResult

	// CacheHit reports whether the answer came from the analysis cache.
	CacheHit bool

	// GeneratedAt is when the answer was produced (or originally
	// produced, for cache hits).
	GeneratedAt time.Time
}
