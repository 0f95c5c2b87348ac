package mcp

import (
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
	"github.com/ledgerline/fiscalia/internal/core/ports/driving"
)

// Ports aggregates the port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides read-only similarity search.
	Search driving.SearchService

	// RAG answers questions over stored documents. Optional; when nil
	// the ask tool is not registered.
	RAG driving.RAGService

	// Ingest admits documents to the embedding pipeline. Optional.
	Ingest driving.IngestService

	// Jobs exposes queue observability. Optional.
	Jobs driven.JobStore
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// RAG, Ingest and Jobs are optional
	return nil
}
