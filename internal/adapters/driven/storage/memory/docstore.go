package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// It mirrors the SQLite store's semantics and is intended for tests.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk // keyed by document ID, ordered by index
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// UpsertChunks stores chunks for a document. Validation runs before any
// mutation so a rejected batch leaves the store untouched.
func (s *DocumentStore) UpsertChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return domain.ErrReferentialIntegrity
	}

	seen := make(map[int]bool, len(chunks))
	for _, c := range chunks {
		if seen[c.Index] {
			return domain.ErrDuplicateChunk
		}
		seen[c.Index] = true
	}

	existing := s.chunks[documentID]
	byIndex := make(map[int]domain.Chunk, len(existing))
	for _, c := range existing {
		byIndex[c.Index] = c
	}
	for _, c := range chunks {
		c.DocumentID = documentID
		byIndex[c.Index] = c
	}

	merged := make([]domain.Chunk, 0, len(byIndex))
	for _, c := range byIndex {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })
	s.chunks[documentID] = merged
	return nil
}

// GetChunks retrieves all chunks for a document, ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[documentID]
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// Search scores every embedded chunk matching the filters against the
// query embedding and returns the TopK best at or above MinSimilarity.
func (s *DocumentStore) Search(_ context.Context, queryEmbedding []float32, opts domain.SearchOptions) ([]domain.SimilarityResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []domain.SimilarityResult{}
	for docID, chunks := range s.chunks {
		doc := s.documents[docID]
		for _, chunk := range chunks {
			if !chunk.Embedded() {
				continue
			}
			if !matchesFilters(chunk.Metadata, opts.Filters) {
				continue
			}
			sim := cosineSimilarity(queryEmbedding, chunk.Embedding)
			if sim < opts.MinSimilarity {
				continue
			}
			results = append(results, domain.SimilarityResult{
				Chunk:            chunk,
				Similarity:       sim,
				DocumentMetadata: doc.Metadata,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.CreatedAt.After(results[j].Chunk.CreatedAt)
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// SetEmbeddingStatus updates document-level embedding progress.
func (s *DocumentStore) SetEmbeddingStatus(_ context.Context, documentID string, status domain.EmbeddingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.EmbeddingStatus = status
	s.documents[documentID] = doc
	return nil
}

// GetEmbeddingStatus reports document-level embedding progress.
func (s *DocumentStore) GetEmbeddingStatus(_ context.Context, documentID string) (domain.EmbeddingStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return doc.EmbeddingStatus, nil
}

// matchesFilters reports whether metadata satisfies every filter key.
func matchesFilters(metadata map[string]string, filters domain.SearchFilters) bool {
	for k, v := range filters {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
