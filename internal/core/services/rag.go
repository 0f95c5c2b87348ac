package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
	"github.com/ledgerline/fiscalia/internal/core/ports/driving"
	"github.com/ledgerline/fiscalia/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// Default RAG configuration.
const (
	DefaultMaxContextItems = 5
	DefaultMinSimilarity   = 0.3
	DefaultContextBudget   = 8000 // characters of assembled context
	DefaultQueryType       = "fiscal_analysis"
)

// answerPrompt grounds the generative model on retrieved context.
const answerPrompt = `You are a fiscal document analyst. Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
%s

Question: %s

Answer:`

// RAGService answers questions over stored fiscal documents:
// cache check, query embedding, filtered retrieval, generation,
// cache population and conversational-memory write-back.
type RAGService struct {
	docStore   driven.DocumentStore
	cacheStore driven.CacheStore
	embedder   driven.EmbeddingService
	llm        driven.LLMService

	minSimilarity float64
	contextBudget int
	cacheTTL      time.Duration
	queryType     string
	now           func() time.Time
}

// RAGOption configures a RAGService.
type RAGOption func(*RAGService)

// WithMinSimilarity sets the retrieval similarity floor.
func WithMinSimilarity(min float64) RAGOption {
	return func(s *RAGService) { s.minSimilarity = min }
}

// WithContextBudget caps the assembled context size in characters.
func WithContextBudget(chars int) RAGOption {
	return func(s *RAGService) {
		if chars > 0 {
			s.contextBudget = chars
		}
	}
}

// WithCacheTTL sets how long generated answers stay cached.
func WithCacheTTL(ttl time.Duration) RAGOption {
	return func(s *RAGService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithQueryType sets the query classification recorded in the cache.
func WithQueryType(qt string) RAGOption {
	return func(s *RAGService) {
		if qt != "" {
			s.queryType = qt
		}
	}
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) RAGOption {
	return func(s *RAGService) { s.now = now }
}

// NewRAGService creates a new RAG service.
func NewRAGService(
	docStore driven.DocumentStore,
	cacheStore driven.CacheStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	opts ...RAGOption,
) *RAGService {
	s := &RAGService{
		docStore:      docStore,
		cacheStore:    cacheStore,
		embedder:      embedder,
		llm:           llm,
		minSimilarity: DefaultMinSimilarity,
		contextBudget: DefaultContextBudget,
		cacheTTL:      domain.DefaultCacheTTL,
		queryType:     DefaultQueryType,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer runs the full pipeline for one question.
func (s *RAGService) Answer(ctx context.Context, query string, filters domain.SearchFilters, maxContextItems int) (*domain.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if maxContextItems <= 0 {
		maxContextItems = DefaultMaxContextItems
	}

	now := s.now().UTC()
	contextFP := contextFingerprint(filters)
	key := cacheKey(s.queryType, normaliseQuery(query), contextFP)

	if entry, err := s.cacheStore.Get(ctx, key, now); err == nil {
		logger.Debug("cache hit for query type %s", s.queryType)
		return &domain.Answer{
			Text:        entry.Response,
			CacheHit:    true,
			GeneratedAt: entry.CreatedAt,
		}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("checking cache: %w", err)
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.docStore.Search(ctx, queryEmbedding, domain.SearchOptions{
		TopK:          maxContextItems,
		MinSimilarity: s.minSimilarity,
		Filters:       filters,
	})
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	contextText := s.assembleContext(results)

	prompt := fmt.Sprintf(answerPrompt, contextText, query)
	answerText, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	answerText = strings.TrimSpace(answerText)

	entry := &domain.CacheEntry{
		CacheKey:           key,
		QueryType:          s.queryType,
		QueryText:          query,
		ContextFingerprint: contextFP,
		Response:           answerText,
		ResponseMetadata: map[string]string{
			"model":         s.llm.ModelName(),
			"context_items": fmt.Sprintf("%d", len(results)),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(s.cacheTTL),
	}
	if err := s.cacheStore.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("caching answer: %w", err)
	}

	// Memory write-back is best effort: a storage hiccup here must not
	// discard an answer that was already generated and cached.
	if err := s.writeBackMemory(ctx, query, answerText, now); err != nil {
		logger.Debug("memory write-back failed: %v", err)
	}

	return &domain.Answer{
		Text:         answerText,
		ContextItems: results,
		CacheHit:     false,
		GeneratedAt:  now,
	}, nil
}

// assembleContext orders retrieved chunks by similarity and truncates
// at the character budget rather than failing on large context.
func (s *RAGService) assembleContext(results []domain.SimilarityResult) string {
	if len(results) == 0 {
		return "(no relevant documents found)"
	}

	var b strings.Builder
	for i, r := range results {
		section := fmt.Sprintf("[%d] %s\n", i+1, r.Chunk.Text)
		if b.Len()+len(section) > s.contextBudget {
			remaining := s.contextBudget - b.Len()
			if remaining > 0 {
				b.WriteString(section[:remaining])
			}
			break
		}
		b.WriteString(section)
	}
	return b.String()
}

// writeBackMemory persists the answered exchange as an embedded
// conversational-memory chunk so future similar queries can retrieve
// prior reasoning directly.
func (s *RAGService) writeBackMemory(ctx context.Context, query, answer string, now time.Time) error {
	memoryText := fmt.Sprintf("Q: %s\nA: %s", query, answer)

	embedding, err := s.embedder.Embed(ctx, memoryText)
	if err != nil {
		return fmt.Errorf("embedding memory: %w", err)
	}

	docID := uuid.NewString()
	doc := &domain.Document{
		ID:   docID,
		Text: memoryText,
		Metadata: map[string]string{
			domain.MetadataKeyDocumentType: domain.DocumentTypeMemory,
		},
		EmbeddingStatus: domain.EmbeddingCompleted,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("saving memory document: %w", err)
	}

	chunk := domain.Chunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Index:      0,
		Text:       memoryText,
		Embedding:  embedding,
		Metadata: map[string]string{
			domain.MetadataKeyDocumentType: domain.DocumentTypeMemory,
		},
		CreatedAt: now,
	}
	if err := s.docStore.UpsertChunks(ctx, docID, []domain.Chunk{chunk}); err != nil {
		return fmt.Errorf("saving memory chunk: %w", err)
	}
	return nil
}
