package sqlite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// seedJob creates a document with one chunk and a pending job for it.
func seedJob(t *testing.T, store *Store, jobID, docID string, priority int) {
	t.Helper()
	ctx := context.Background()
	docs := store.DocumentStore()

	require.NoError(t, docs.SaveDocument(ctx, testDocument(docID)))
	require.NoError(t, docs.UpsertChunks(ctx, docID, []domain.Chunk{
		{ID: docID + "-c0", DocumentID: docID, Index: 0, Text: "conteúdo"},
	}))
	require.NoError(t, store.JobStore().Enqueue(ctx, &domain.EmbeddingJob{
		ID:         jobID,
		DocumentID: docID,
		Priority:   priority,
		ChunkIDs:   []string{docID + "-c0"},
	}))
}

func TestJobStore_EnqueueDefaults(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()

	seedJob(t, store, "job-1", "doc-1", 0)

	job, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, domain.DefaultMaxAttempts, job.MaxAttempts)
	assert.Zero(t, job.Attempts)
	assert.False(t, job.AvailableAt.IsZero())
	assert.Equal(t, []string{"doc-1-c0"}, job.ChunkIDs)
}

func TestJobStore_Enqueue_InvalidInput(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()

	assert.ErrorIs(t, jobs.Enqueue(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, jobs.Enqueue(ctx, &domain.EmbeddingJob{DocumentID: "d"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, jobs.Enqueue(ctx, &domain.EmbeddingJob{ID: "j"}), domain.ErrInvalidInput)
}

func TestJobStore_ClaimNext_PriorityThenAge(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedJob(t, store, "job-low", "doc-low", 0)
	seedJob(t, store, "job-high", "doc-high", 5)
	seedJob(t, store, "job-also-high", "doc-also-high", 5)

	first, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
	require.NoError(t, err)
	assert.Equal(t, "job-high", first.ID, "equal priority falls back to enqueue order")
	assert.Equal(t, domain.JobProcessing, first.Status)
	assert.Equal(t, 1, first.Attempts)
	assert.False(t, first.LeaseExpiresAt.IsZero())

	second, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
	require.NoError(t, err)
	assert.Equal(t, "job-also-high", second.ID)

	third, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
	require.NoError(t, err)
	assert.Equal(t, "job-low", third.ID)

	_, err = jobs.ClaimNext(ctx, now, domain.DefaultLease)
	assert.ErrorIs(t, err, domain.ErrNoJobAvailable)
}

func TestJobStore_ClaimNext_RespectsAvailableAt(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	docs := store.DocumentStore()
	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-1")))
	require.NoError(t, jobs.Enqueue(ctx, &domain.EmbeddingJob{
		ID:          "deferred",
		DocumentID:  "doc-1",
		AvailableAt: now.Add(time.Hour),
	}))

	_, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
	assert.ErrorIs(t, err, domain.ErrNoJobAvailable)

	job, err := jobs.ClaimNext(ctx, now.Add(2*time.Hour), domain.DefaultLease)
	require.NoError(t, err)
	assert.Equal(t, "deferred", job.ID)
}

func TestJobStore_Complete_PersistsEmbeddingsAtomically(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	docs := store.DocumentStore()
	ctx := context.Background()

	seedJob(t, store, "job-1", "doc-1", 0)
	job, err := jobs.ClaimNext(ctx, time.Now().UTC(), domain.DefaultLease)
	require.NoError(t, err)

	embedded := []domain.Chunk{
		{ID: "doc-1-c0", DocumentID: "doc-1", Index: 0, Embedding: []float32{0.5, 0.5}},
	}
	require.NoError(t, jobs.Complete(ctx, job.ID, embedded))

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)
	assert.Empty(t, got.LastError)
	assert.True(t, got.LeaseExpiresAt.IsZero())

	chunk, err := docs.GetChunk(ctx, "doc-1-c0")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, chunk.Embedding)

	status, err := docs.GetEmbeddingStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingCompleted, status)
}

func TestJobStore_Complete_UnknownChunkRollsBack(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()

	seedJob(t, store, "job-1", "doc-1", 0)
	job, err := jobs.ClaimNext(ctx, time.Now().UTC(), domain.DefaultLease)
	require.NoError(t, err)

	err = jobs.Complete(ctx, job.ID, []domain.Chunk{
		{ID: "doc-1-c0", DocumentID: "doc-1", Embedding: []float32{1}},
		{ID: "no-such-chunk", DocumentID: "doc-1", Embedding: []float32{1}},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Nothing from the failed transaction is visible.
	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobProcessing, got.Status)

	chunk, err := store.DocumentStore().GetChunk(ctx, "doc-1-c0")
	require.NoError(t, err)
	assert.False(t, chunk.Embedded())
}

func TestJobStore_Fail_BackoffThenTerminal(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	docs := store.DocumentStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedJob(t, store, "job-1", "doc-1", 0)

	for attempt := 1; attempt <= domain.DefaultMaxAttempts; attempt++ {
		job, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
		require.NoError(t, err)
		require.Equal(t, attempt, job.Attempts)
		require.NoError(t, jobs.Fail(ctx, job.ID, "provider timeout", now))

		got, err := jobs.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "provider timeout", got.LastError)
		if attempt < domain.DefaultMaxAttempts {
			assert.Equal(t, domain.JobPending, got.Status)
			assert.True(t, got.AvailableAt.Equal(now.Add(domain.RetryBackoff(attempt))))
			now = got.AvailableAt
		} else {
			assert.Equal(t, domain.JobFailed, got.Status)
		}
	}

	status, err := docs.GetEmbeddingStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, status)

	assert.ErrorIs(t, jobs.Fail(ctx, "job-1", "again", now), domain.ErrJobTerminal)
	assert.ErrorIs(t, jobs.Complete(ctx, "job-1", nil), domain.ErrJobTerminal)
}

func TestJobStore_FailTerminal(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedJob(t, store, "job-1", "doc-1", 0)
	job, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
	require.NoError(t, err)

	require.NoError(t, jobs.FailTerminal(ctx, job.ID, "embedding dimension mismatch", now))

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.Status)
	assert.Equal(t, 1, got.Attempts, "retry budget is untouched")
	assert.Equal(t, "embedding dimension mismatch", got.LastError)

	status, err := store.DocumentStore().GetEmbeddingStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, status)
}

func TestJobStore_ExtendLease(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedJob(t, store, "job-1", "doc-1", 0)

	// A pending job holds no lease to extend.
	assert.ErrorIs(t, jobs.ExtendLease(ctx, "job-1", now.Add(time.Hour)), domain.ErrNotFound)

	_, err := jobs.ClaimNext(ctx, now, time.Minute)
	require.NoError(t, err)

	until := now.Add(time.Hour)
	require.NoError(t, jobs.ExtendLease(ctx, "job-1", until))

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, got.LeaseExpiresAt.Equal(until))
}

func TestJobStore_ReclaimStale(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedJob(t, store, "job-1", "doc-1", 0)
	_, err := jobs.ClaimNext(ctx, now, time.Minute)
	require.NoError(t, err)

	n, err := jobs.ReclaimStale(ctx, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Zero(t, n, "live lease is left alone")

	n, err = jobs.ReclaimStale(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := jobs.ClaimNext(ctx, now.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, 2, job.Attempts)
}

func TestJobStore_ReclaimStale_ExhaustedBudgetBecomesTerminal(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	docs := store.DocumentStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-1")))
	require.NoError(t, jobs.Enqueue(ctx, &domain.EmbeddingJob{
		ID:          "job-1",
		DocumentID:  "doc-1",
		MaxAttempts: 1,
	}))

	// The only attempt is spent by the claim; the worker then dies
	// without reporting back.
	job, err := jobs.ClaimNext(ctx, now, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, job.Attempts)

	n, err := jobs.ReclaimStale(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "an exhausted job is not requeued")

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.Status)
	assert.Equal(t, 1, got.Attempts, "attempts never exceed the budget")
	assert.NotEmpty(t, got.LastError)

	_, err = jobs.ClaimNext(ctx, now.Add(2*time.Minute), time.Minute)
	assert.ErrorIs(t, err, domain.ErrNoJobAvailable)

	status, err := docs.GetEmbeddingStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, status)
}

func TestJobStore_ClaimNext_ConcurrentClaimersOneWinner(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedJob(t, store, "job-1", "doc-1", 0)

	const claimers = 8
	var wg sync.WaitGroup
	var wins, misses atomic.Int32
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
			switch {
			case err == nil:
				assert.Equal(t, "job-1", job.ID)
				wins.Add(1)
			case errors.Is(err, domain.ErrNoJobAvailable):
				misses.Add(1)
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one claimer wins the job")
	assert.Equal(t, int32(claimers-1), misses.Load())

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestJobStore_StatsAndPurge(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedJob(t, store, "job-a", "doc-a", 0)
	seedJob(t, store, "job-b", "doc-b", 0)
	seedJob(t, store, "job-c", "doc-c", 0)

	claimed, err := jobs.ClaimNext(ctx, now, domain.DefaultLease)
	require.NoError(t, err)
	require.NoError(t, jobs.Complete(ctx, claimed.ID, nil))

	claimed, err = jobs.ClaimNext(ctx, now, domain.DefaultLease)
	require.NoError(t, err)
	require.NoError(t, jobs.FailTerminal(ctx, claimed.ID, "fatal", now))

	stats, err := jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{Pending: 1, Completed: 1, Failed: 1}, stats)

	purged, err := jobs.PurgeCompleted(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	stats, err = jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Completed)
}

func TestJobStore_GetJobByDocument_MostRecent(t *testing.T) {
	store := newTestStore(t)
	jobs := store.JobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.DocumentStore().SaveDocument(ctx, testDocument("doc-1")))
	require.NoError(t, jobs.Enqueue(ctx, &domain.EmbeddingJob{
		ID: "old", DocumentID: "doc-1", CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, jobs.Enqueue(ctx, &domain.EmbeddingJob{
		ID: "new", DocumentID: "doc-1", CreatedAt: now,
	}))

	job, err := jobs.GetJobByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "new", job.ID)

	_, err = jobs.GetJobByDocument(ctx, "doc-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
