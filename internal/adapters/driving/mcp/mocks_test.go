package mcp

import (
	"context"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.SimilarityResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SimilarityResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	answer *domain.Answer
	err    error
}

func (m *mockRAGService) Answer(
	_ context.Context,
	_ string,
	_ domain.SearchFilters,
	_ int,
) (*domain.Answer, error) {
	return m.answer, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	status    domain.EmbeddingStatus
	lastError string
	err       error
}

func (m *mockIngestService) SubmitDocument(
	_ context.Context,
	_, _ string,
	_ map[string]string,
	_ int,
) error {
	return m.err
}

func (m *mockIngestService) EmbeddingStatus(
	_ context.Context,
	_ string,
) (domain.EmbeddingStatus, string, error) {
	return m.status, m.lastError, m.err
}

// mockJobStore implements the subset of driven.JobStore the resource
// handlers touch; the remaining methods are inert.
type mockJobStore struct {
	stats domain.QueueStats
	err   error
}

func (m *mockJobStore) Enqueue(_ context.Context, _ *domain.EmbeddingJob) error { return nil }

func (m *mockJobStore) ClaimNext(_ context.Context, _ time.Time, _ time.Duration) (*domain.EmbeddingJob, error) {
	return nil, domain.ErrNoJobAvailable
}

func (m *mockJobStore) Complete(_ context.Context, _ string, _ []domain.Chunk) error { return nil }

func (m *mockJobStore) Fail(_ context.Context, _ string, _ string, _ time.Time) error { return nil }

func (m *mockJobStore) FailTerminal(_ context.Context, _ string, _ string, _ time.Time) error {
	return nil
}

func (m *mockJobStore) ExtendLease(_ context.Context, _ string, _ time.Time) error { return nil }

func (m *mockJobStore) ReclaimStale(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func (m *mockJobStore) GetJob(_ context.Context, _ string) (*domain.EmbeddingJob, error) {
	return nil, domain.ErrNotFound
}

func (m *mockJobStore) GetJobByDocument(_ context.Context, _ string) (*domain.EmbeddingJob, error) {
	return nil, domain.ErrNotFound
}

func (m *mockJobStore) Stats(_ context.Context) (domain.QueueStats, error) {
	return m.stats, m.err
}

func (m *mockJobStore) PurgeCompleted(_ context.Context, _ time.Time) (int, error) { return 0, nil }
