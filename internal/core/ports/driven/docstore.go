package driven

import (
	"context"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// DocumentStore persists documents and chunks and serves filtered
// similarity search. Backed by SQLite.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document and cascades to its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// UpsertChunks stores chunks for a document in one transaction.
	// Returns domain.ErrReferentialIntegrity if the document does not
	// exist and domain.ErrDuplicateChunk on a colliding
	// (document_id, chunk_index) pair; nothing is persisted either way.
	UpsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document, ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// Search computes cosine similarity between the query embedding
	// and every embedded chunk matching opts.Filters, returning the
	// TopK highest-scoring results at or above MinSimilarity, ordered
	// by descending similarity with ties broken by most recent chunk.
	// An empty result is not an error.
	Search(ctx context.Context, queryEmbedding []float32, opts domain.SearchOptions) ([]domain.SimilarityResult, error)

	// SetEmbeddingStatus updates document-level embedding progress.
	SetEmbeddingStatus(ctx context.Context, documentID string, status domain.EmbeddingStatus) error

	// GetEmbeddingStatus reports document-level embedding progress.
	GetEmbeddingStatus(ctx context.Context, documentID string) (domain.EmbeddingStatus, error)
}
