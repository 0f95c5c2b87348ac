package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

func queueStatsRequest() *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: uriScheme + "queue/stats"},
	}
}

func TestHandleQueueStatsResource(t *testing.T) {
	jobs := &mockJobStore{
		stats: domain.QueueStats{Pending: 3, Processing: 1, Completed: 12, Failed: 2},
	}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Jobs: jobs})
	require.NoError(t, err)

	result, err := server.handleQueueStatsResource(context.Background(), queueStatsRequest())
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var stats domain.QueueStats
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &stats))
	assert.Equal(t, jobs.stats, stats)
}

func TestHandleQueueStatsResource_NoJobStore(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}})
	require.NoError(t, err)

	result, err := server.handleQueueStatsResource(context.Background(), queueStatsRequest())
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.JSONEq(t, "{}", result.Contents[0].Text)
}

func TestHandleQueueStatsResource_StoreError(t *testing.T) {
	jobs := &mockJobStore{err: errors.New("db locked")}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Jobs: jobs})
	require.NoError(t, err)

	_, err = server.handleQueueStatsResource(context.Background(), queueStatsRequest())
	assert.Error(t, err)
}
