package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/adapters/driven/storage/memory"
	"github.com/ledgerline/fiscalia/internal/core/domain"
)

type ragFixture struct {
	svc      *RAGService
	docs     *memory.DocumentStore
	cache    *memory.CacheStore
	embedder *mockEmbedder
	llm      *mockLLM
	clock    *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRAGFixture(t *testing.T, opts ...RAGOption) *ragFixture {
	t.Helper()

	f := &ragFixture{
		docs:     memory.NewDocumentStore(),
		cache:    memory.NewCacheStore(),
		embedder: &mockEmbedder{vector: []float32{1, 0, 0}},
		llm:      &mockLLM{response: "O imposto devido é R$ 200,00."},
		clock:    &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]RAGOption{withClock(f.clock.now)}, opts...)
	f.svc = NewRAGService(f.docs, f.cache, f.embedder, f.llm, opts...)
	return f
}

func (f *ragFixture) seedDocument(t *testing.T, docID string, metadata map[string]string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.docs.SaveDocument(ctx, &domain.Document{
		ID:              docID,
		Text:            "ICMS destacado: R$ 200,00.",
		Metadata:        metadata,
		EmbeddingStatus: domain.EmbeddingCompleted,
	}))
	require.NoError(t, f.docs.UpsertChunks(ctx, docID, []domain.Chunk{
		{
			ID:         docID + "-c0",
			DocumentID: docID,
			Index:      0,
			Text:       "ICMS destacado: R$ 200,00.",
			Embedding:  []float32{1, 0, 0},
			Metadata:   metadata,
		},
	}))
}

func TestAnswer_GeneratesAndCaches(t *testing.T) {
	f := newRAGFixture(t)
	f.seedDocument(t, "nfe-1", map[string]string{"document_type": "NFe"})
	ctx := context.Background()

	answer, err := f.svc.Answer(ctx, "Qual o ICMS destacado?", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, "O imposto devido é R$ 200,00.", answer.Text)
	assert.False(t, answer.CacheHit)
	require.Len(t, answer.ContextItems, 1)
	assert.Equal(t, "nfe-1-c0", answer.ContextItems[0].Chunk.ID)
	assert.Equal(t, f.clock.t, answer.GeneratedAt)

	// The prompt carries the retrieved passage.
	require.Len(t, f.llm.prompts, 1)
	assert.Contains(t, f.llm.prompts[0], "ICMS destacado: R$ 200,00.")
	assert.Contains(t, f.llm.prompts[0], "Qual o ICMS destacado?")
}

func TestAnswer_CacheHitSkipsGeneration(t *testing.T) {
	f := newRAGFixture(t)
	f.seedDocument(t, "nfe-1", nil)
	ctx := context.Background()

	first, err := f.svc.Answer(ctx, "Qual o ICMS destacado?", nil, 0)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	// Same question with different casing and spacing hits the cache.
	second, err := f.svc.Answer(ctx, "  QUAL   o icms destacado?", nil, 0)
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
	assert.Equal(t, 1, f.llm.calls, "cached answers never reach the model")
}

func TestAnswer_FiltersChangeCacheKey(t *testing.T) {
	f := newRAGFixture(t)
	f.seedDocument(t, "nfe-1", map[string]string{"document_type": "NFe"})
	ctx := context.Background()

	_, err := f.svc.Answer(ctx, "Qual o ICMS?", nil, 0)
	require.NoError(t, err)

	answer, err := f.svc.Answer(ctx, "Qual o ICMS?", domain.SearchFilters{"document_type": "NFe"}, 0)
	require.NoError(t, err)

	assert.False(t, answer.CacheHit, "a different retrieval constraint is a different answer")
	assert.Equal(t, 2, f.llm.calls)
}

func TestAnswer_ExpiredCacheEntryRegenerates(t *testing.T) {
	f := newRAGFixture(t, WithCacheTTL(time.Hour))
	f.seedDocument(t, "nfe-1", nil)
	ctx := context.Background()

	_, err := f.svc.Answer(ctx, "Qual o ICMS?", nil, 0)
	require.NoError(t, err)

	f.clock.advance(2 * time.Hour)

	answer, err := f.svc.Answer(ctx, "Qual o ICMS?", nil, 0)
	require.NoError(t, err)
	assert.False(t, answer.CacheHit)
	assert.Equal(t, 2, f.llm.calls)
}

func TestAnswer_EmptyQuery(t *testing.T) {
	f := newRAGFixture(t)

	_, err := f.svc.Answer(context.Background(), "   ", nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnswer_NoLLMConfigured(t *testing.T) {
	f := newRAGFixture(t)
	svc := NewRAGService(f.docs, f.cache, f.embedder, nil, withClock(f.clock.now))

	_, err := svc.Answer(context.Background(), "Qual o ICMS?", nil, 0)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestAnswer_GenerationErrorLeavesNoCacheEntry(t *testing.T) {
	f := newRAGFixture(t)
	f.seedDocument(t, "nfe-1", nil)
	f.llm.err = domain.ErrGeneration
	ctx := context.Background()

	_, err := f.svc.Answer(ctx, "Qual o ICMS?", nil, 0)
	require.ErrorIs(t, err, domain.ErrGeneration)

	// Recovery: the next call regenerates instead of serving a
	// half-written entry.
	f.llm.err = nil
	answer, err := f.svc.Answer(ctx, "Qual o ICMS?", nil, 0)
	require.NoError(t, err)
	assert.False(t, answer.CacheHit)
}

func TestAnswer_NoContextFound(t *testing.T) {
	f := newRAGFixture(t)
	ctx := context.Background()

	answer, err := f.svc.Answer(ctx, "Pergunta sem documentos?", nil, 0)
	require.NoError(t, err)

	assert.Empty(t, answer.ContextItems)
	require.Len(t, f.llm.prompts, 1)
	assert.Contains(t, f.llm.prompts[0], "(no relevant documents found)")
}

func TestAnswer_WritesBackConversationMemory(t *testing.T) {
	f := newRAGFixture(t)
	f.seedDocument(t, "nfe-1", nil)
	ctx := context.Background()

	_, err := f.svc.Answer(ctx, "Qual o ICMS destacado?", nil, 0)
	require.NoError(t, err)

	// The exchange is retrievable as an embedded memory chunk.
	results, err := f.docs.Search(ctx, []float32{1, 0, 0}, domain.SearchOptions{
		TopK:    10,
		Filters: domain.SearchFilters{domain.MetadataKeyDocumentType: domain.DocumentTypeMemory},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, strings.HasPrefix(results[0].Chunk.Text, "Q: Qual o ICMS destacado?"))
	assert.Contains(t, results[0].Chunk.Text, "A: O imposto devido é R$ 200,00.")
}

func TestAssembleContext_TruncatesAtBudget(t *testing.T) {
	f := newRAGFixture(t, WithContextBudget(50))

	results := []domain.SimilarityResult{
		{Chunk: domain.Chunk{Text: strings.Repeat("a", 40)}},
		{Chunk: domain.Chunk{Text: strings.Repeat("b", 40)}},
	}
	out := f.svc.assembleContext(results)
	assert.LessOrEqual(t, len(out), 50)
	assert.Contains(t, out, "[1]")
}
