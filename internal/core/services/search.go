package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
	"github.com/ledgerline/fiscalia/internal/core/ports/driving"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultTopK is how many results a search returns when unspecified.
const DefaultTopK = 10

// SearchService exposes read-only similarity search over stored
// documents.
type SearchService struct {
	docStore driven.DocumentStore
	embedder driven.EmbeddingService
}

// NewSearchService creates a new search service.
func NewSearchService(docStore driven.DocumentStore, embedder driven.EmbeddingService) *SearchService {
	return &SearchService{
		docStore: docStore,
		embedder: embedder,
	}
}

// Search embeds the query text and returns the most similar chunks
// satisfying the filters. An empty result is not an error.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SimilarityResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return s.docStore.Search(ctx, queryEmbedding, opts)
}
