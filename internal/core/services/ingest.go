package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerline/fiscalia/internal/chunker"
	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
	"github.com/ledgerline/fiscalia/internal/core/ports/driving"
	"github.com/ledgerline/fiscalia/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// taxFieldPrefix marks metadata keys carrying fiscal attributes that
// arrive in mixed shapes from upstream extractors.
const taxFieldPrefix = "tax_"

// IngestService admits documents to the embedding pipeline: it chunks
// the text, persists the chunks unembedded, and enqueues an
// asynchronous embedding job.
type IngestService struct {
	docStore driven.DocumentStore
	jobStore driven.JobStore
	chunker  *chunker.Chunker
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	docStore driven.DocumentStore,
	jobStore driven.JobStore,
	ch *chunker.Chunker,
) *IngestService {
	if ch == nil {
		ch = chunker.New()
	}
	return &IngestService{
		docStore: docStore,
		jobStore: jobStore,
		chunker:  ch,
	}
}

// SubmitDocument accepts extracted document text plus metadata, chunks
// it, and enqueues embedding work. The document and its unembedded
// chunks are visible immediately; embeddings arrive asynchronously.
func (s *IngestService) SubmitDocument(ctx context.Context, documentID, text string, metadata map[string]string, priority int) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyDocument
	}

	doc := &domain.Document{
		ID:              documentID,
		Text:            text,
		Metadata:        normaliseTaxMetadata(metadata),
		EmbeddingStatus: domain.EmbeddingPending,
	}

	chunks, err := s.chunker.Split(doc)
	if err != nil {
		return fmt.Errorf("chunking document: %w", err)
	}

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if err := s.docStore.UpsertChunks(ctx, documentID, chunks); err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	job := &domain.EmbeddingJob{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Priority:   priority,
		ChunkIDs:   chunkIDs,
	}
	if err := s.jobStore.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueueing embedding job: %w", err)
	}

	logger.Debug("submitted document %s: %d chunks, priority %d", documentID, len(chunks), priority)
	return nil
}

// EmbeddingStatus reports document-level pipeline progress. For a
// terminally failed document the retained job error is included.
func (s *IngestService) EmbeddingStatus(ctx context.Context, documentID string) (domain.EmbeddingStatus, string, error) {
	status, err := s.docStore.GetEmbeddingStatus(ctx, documentID)
	if err != nil {
		return "", "", err
	}

	if status != domain.EmbeddingFailed {
		return status, "", nil
	}

	job, err := s.jobStore.GetJobByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return status, "", nil
		}
		return "", "", err
	}
	return status, job.LastError, nil
}

// normaliseTaxMetadata canonicalises fiscal metadata values before they
// reach the core. Upstream extractors emit tax attributes either as
// structured "cst:value" pairs or as free-form strings; both collapse
// to the single canonical shape here.
func normaliseTaxMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return map[string]string{}
	}

	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if strings.HasPrefix(k, taxFieldPrefix) {
			out[k] = domain.ParseTaxField(v).Canonical()
			continue
		}
		out[k] = v
	}
	return out
}
