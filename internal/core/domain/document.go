package domain

import "time"

// EmbeddingStatus tracks document-level embedding progress.
// It is independent of individual job state and gates whether a
// document is eligible for retrieval.
type EmbeddingStatus string

const (
	// EmbeddingPending means no worker has started on the document yet.
	EmbeddingPending EmbeddingStatus = "pending"

	// EmbeddingProcessing means a worker is currently embedding chunks.
	EmbeddingProcessing EmbeddingStatus = "processing"

	// EmbeddingCompleted means every chunk has a persisted embedding.
	EmbeddingCompleted EmbeddingStatus = "completed"

	// EmbeddingFailed means the embedding job exhausted its attempts.
	// The document remains visible; it is simply searchable by zero chunks.
	EmbeddingFailed EmbeddingStatus = "failed"
)

// DocumentTypeMemory tags documents created by the answer write-back.
// Chunks under such documents hold prior generated answers so that
// semantically similar queries can retrieve them directly.
const DocumentTypeMemory = "conversation_memory"

// MetadataKeyDocumentType is the metadata key carrying the fiscal
// document type (e.g. "NFe", "NFSe", "conversation_memory").
const MetadataKeyDocumentType = "document_type"

// Document represents a fiscal document admitted to the pipeline.
// Text extraction (OCR, XML parsing) happens upstream; the pipeline
// receives the already extracted text plus structured metadata.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Text is the full extracted text before chunking.
	Text string

	// Metadata contains filterable key-value attributes
	// (document type, issuer, date). Values are normalised
	// before they reach the core; see TaxField.
	Metadata map[string]string

	// EmbeddingStatus is the document-level pipeline state.
	EmbeddingStatus EmbeddingStatus

	// CreatedAt is when the document entered the pipeline.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Chunk is the unit of retrieval: a bounded slice of a document's text.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document. A chunk must never
	// reference a document that does not exist.
	DocumentID string

	// Index is the ordinal position within the document.
	// (DocumentID, Index) is unique.
	Index int

	// Text is the chunk content. Never empty.
	Text string

	// Embedding is the vector representation. Nil until a worker
	// computes it; never mutated afterwards.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs, inherited
	// from the document and enriched by the pipeline.
	Metadata map[string]string

	// CreatedAt is when the chunk was created by the chunker.
	CreatedAt time.Time
}

// Embedded reports whether the chunk has a computed embedding.
func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}
