package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/adapters/driven/storage/memory"
	"github.com/ledgerline/fiscalia/internal/chunker"
	"github.com/ledgerline/fiscalia/internal/core/domain"
)

func newIngestFixture() (*IngestService, *memory.DocumentStore, *memory.JobStore) {
	docs := memory.NewDocumentStore()
	jobs := memory.NewJobStoreWithDocuments(docs)
	svc := NewIngestService(docs, jobs, chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(20)))
	return svc, docs, jobs
}

func TestSubmitDocument(t *testing.T) {
	svc, docs, jobs := newIngestFixture()
	ctx := context.Background()

	err := svc.SubmitDocument(ctx, "nfe-001", "Nota fiscal eletrônica, valor total R$ 1.500,00.", map[string]string{
		"document_type": "NFe",
	}, 3)
	require.NoError(t, err)

	doc, err := docs.GetDocument(ctx, "nfe-001")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingPending, doc.EmbeddingStatus)

	chunks, err := docs.GetChunks(ctx, "nfe-001")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.False(t, c.Embedded(), "chunks are persisted unembedded")
		assert.Equal(t, "NFe", c.Metadata["document_type"])
	}

	job, err := jobs.GetJobByDocument(ctx, "nfe-001")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, 3, job.Priority)
	assert.Len(t, job.ChunkIDs, len(chunks))
}

func TestSubmitDocument_EmptyText(t *testing.T) {
	svc, _, _ := newIngestFixture()

	err := svc.SubmitDocument(context.Background(), "doc-1", "   \n\t ", nil, 0)
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestSubmitDocument_MissingID(t *testing.T) {
	svc, _, _ := newIngestFixture()

	err := svc.SubmitDocument(context.Background(), "", "some text", nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubmitDocument_NormalisesTaxMetadata(t *testing.T) {
	svc, docs, _ := newIngestFixture()
	ctx := context.Background()

	err := svc.SubmitDocument(ctx, "nfe-002", "Texto da nota.", map[string]string{
		"tax_icms":      "060:1.234,56", // structured cst:value
		"tax_iss":       "isento",       // raw free text
		"document_type": "NFSe",
	}, 0)
	require.NoError(t, err)

	doc, err := docs.GetDocument(ctx, "nfe-002")
	require.NoError(t, err)
	assert.Equal(t, "060/1.234,56", doc.Metadata["tax_icms"])
	assert.Equal(t, "isento", doc.Metadata["tax_iss"])
	assert.Equal(t, "NFSe", doc.Metadata["document_type"])
}

func TestSubmitDocument_LongTextChunksWithOverlap(t *testing.T) {
	svc, docs, _ := newIngestFixture()
	ctx := context.Background()

	text := strings.Repeat("Discriminação dos serviços prestados. ", 20)
	require.NoError(t, svc.SubmitDocument(ctx, "nfse-003", text, nil, 0))

	chunks, err := docs.GetChunks(ctx, "nfse-003")
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Text)
	}
}

func TestEmbeddingStatus_ReportsLastErrorOnFailure(t *testing.T) {
	svc, _, jobs := newIngestFixture()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.SubmitDocument(ctx, "doc-fail", "conteúdo", nil, 0))

	status, lastErr, err := svc.EmbeddingStatus(ctx, "doc-fail")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingPending, status)
	assert.Empty(t, lastErr, "healthy documents report no error text")

	job, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
	require.NoError(t, err)
	require.NoError(t, jobs.FailTerminal(ctx, job.ID, "embedding dimension mismatch", now))

	status, lastErr, err = svc.EmbeddingStatus(ctx, "doc-fail")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, status)
	assert.Equal(t, "embedding dimension mismatch", lastErr)

	_, _, err = svc.EmbeddingStatus(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
