// Package chunker splits document text into overlapping passages.
package chunker

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits document content into fixed-size overlapping chunks.
// Splitting is deterministic: identical input always yields identical
// chunk boundaries and ordering.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room for the window to advance
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks the document's text into ordered, non-empty chunks of
// at most the configured size, with the configured overlap shared
// between consecutive chunks. Returns domain.ErrEmptyDocument when the
// document has no text.
func (c *Chunker) Split(doc *domain.Document) ([]domain.Chunk, error) {
	if doc.Text == "" {
		return nil, domain.ErrEmptyDocument
	}

	// Rune-based windows so multi-byte text never splits mid-character
	runes := []rune(doc.Text)
	total := len(runes)

	step := c.chunkSize - c.overlap
	estimated := total/step + 1
	chunks := make([]domain.Chunk, 0, estimated)

	now := time.Now().UTC()
	index := 0

	for start := 0; start < total; start += step {
		end := start + c.chunkSize
		if end > total {
			end = total
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Index:      index,
			Text:       string(runes[start:end]),
			Metadata:   cloneMetadata(doc.Metadata),
			CreatedAt:  now,
		})
		index++

		if end == total {
			break
		}
	}

	return chunks, nil
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
