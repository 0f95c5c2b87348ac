package driving

import (
	"context"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// IngestService admits documents to the embedding pipeline.
type IngestService interface {
	// SubmitDocument accepts extracted document text plus metadata,
	// chunks it, and enqueues asynchronous embedding work. Returns
	// domain.ErrEmptyDocument for documents with no text.
	SubmitDocument(ctx context.Context, documentID, text string, metadata map[string]string, priority int) error

	// EmbeddingStatus reports document-level pipeline progress and,
	// when the job failed terminally, the retained last error.
	EmbeddingStatus(ctx context.Context, documentID string) (domain.EmbeddingStatus, string, error)
}

// WorkerPool drives asynchronous embedding jobs to completion.
type WorkerPool interface {
	// Run starts the workers and blocks until the context is
	// cancelled. Safe to call once.
	Run(ctx context.Context) error
}
