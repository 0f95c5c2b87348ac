package driving

import (
	"context"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// RAGService answers natural-language questions over stored documents.
type RAGService interface {
	// Answer runs the full pipeline: cache check, query embedding,
	// filtered retrieval, generation, cache population and memory
	// write-back. maxContextItems bounds how many retrieved chunks
	// ground the answer.
	Answer(ctx context.Context, query string, filters domain.SearchFilters, maxContextItems int) (*domain.Answer, error)
}

// SearchService exposes read-only similarity search to external
// callers (fiscal validation, presentation layers).
type SearchService interface {
	// Search embeds the query text and returns the most similar
	// chunks satisfying the filters.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SimilarityResult, error)
}
