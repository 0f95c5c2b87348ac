package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string            `json:"query" jsonschema:"the search query to find document passages"`
	Limit   int               `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Filters map[string]string `json:"filters,omitempty" jsonschema:"exact-match metadata filters, e.g. document_type"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Similarity float64           `json:"similarity"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question        string            `json:"question" jsonschema:"the question to answer over stored fiscal documents"`
	Filters         map[string]string `json:"filters,omitempty" jsonschema:"exact-match metadata filters constraining retrieval"`
	MaxContextItems int               `json:"max_context_items,omitempty" jsonschema:"how many retrieved passages ground the answer (default 5)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string   `json:"answer"`
	CacheHit     bool     `json:"cache_hit"`
	ContextCount int      `json:"context_count"`
	ContextIDs   []string `json:"context_ids,omitempty"`
}

// StatusInput is the input schema for the embedding-status tool.
type StatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to report embedding progress for"`
}

// StatusOutput is the output schema for the embedding-status tool.
type StatusOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	LastError  string `json:"last_error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search stored fiscal documents by semantic similarity",
	}, s.handleSearch)

	if s.ports.RAG != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question grounded on stored fiscal documents",
		}, s.handleAsk)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "embedding_status",
			Description: "Report embedding pipeline progress for a document",
		}, s.handleStatus)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.SearchOptions{
		TopK:    limit,
		Filters: input.Filters,
	}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			DocumentID: results[i].Chunk.DocumentID,
			ChunkIndex: results[i].Chunk.Index,
			Similarity: results[i].Similarity,
			Text:       results[i].Chunk.Text,
			Metadata:   results[i].Chunk.Metadata,
		}
	}

	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.RAG.Answer(ctx, input.Question, input.Filters, input.MaxContextItems)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:       answer.Text,
		CacheHit:     answer.CacheHit,
		ContextCount: len(answer.ContextItems),
	}
	for _, item := range answer.ContextItems {
		output.ContextIDs = append(output.ContextIDs, item.Chunk.ID)
	}

	return nil, output, nil
}

// handleStatus handles the embedding-status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	status, lastError, err := s.ports.Ingest.EmbeddingStatus(ctx, input.DocumentID)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	return nil, StatusOutput{
		DocumentID: input.DocumentID,
		Status:     string(status),
		LastError:  lastError,
	}, nil
}
