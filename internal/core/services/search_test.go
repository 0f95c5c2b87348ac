package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/adapters/driven/storage/memory"
	"github.com/ledgerline/fiscalia/internal/core/domain"
)

func TestSearchService_Search(t *testing.T) {
	docs := memory.NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{
		ID:   "doc-1",
		Text: "Valor total da nota: R$ 3.000,00.",
	}))
	require.NoError(t, docs.UpsertChunks(ctx, "doc-1", []domain.Chunk{
		{ID: "c-1", Index: 0, Text: "Valor total da nota: R$ 3.000,00.", Embedding: []float32{1, 0}},
	}))

	embedder := &mockEmbedder{vector: []float32{1, 0}}
	svc := NewSearchService(docs, embedder)

	results, err := svc.Search(ctx, "valor total", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c-1", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)

	// The query text itself is what gets embedded.
	assert.Equal(t, []string{"valor total"}, embedder.texts)
}

func TestSearchService_EmptyQuery(t *testing.T) {
	svc := NewSearchService(memory.NewDocumentStore(), &mockEmbedder{})

	_, err := svc.Search(context.Background(), "  ", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchService_EmbedderError(t *testing.T) {
	embedErr := errors.New("all providers down")
	svc := NewSearchService(memory.NewDocumentStore(), &mockEmbedder{err: embedErr})

	_, err := svc.Search(context.Background(), "valor", domain.SearchOptions{})
	assert.ErrorIs(t, err, embedErr)
}

func TestSearchService_EmptyResultIsNotError(t *testing.T) {
	svc := NewSearchService(memory.NewDocumentStore(), &mockEmbedder{vector: []float32{1}})

	results, err := svc.Search(context.Background(), "nada", domain.SearchOptions{TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}
