package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for Fiscalia resources.
const uriScheme = "fiscalia://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for embedding queue depth.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "queue/stats",
		Name:        "queue-stats",
		Description: "Embedding job queue depth by status",
		MIMEType:    "application/json",
	}, s.handleQueueStatsResource)
}

// handleQueueStatsResource returns job counts by status.
func (s *Server) handleQueueStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Jobs == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "{}",
			}},
		}, nil
	}

	stats, err := s.ports.Jobs.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading queue stats: %w", err)
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling queue stats: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
