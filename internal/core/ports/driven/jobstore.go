package driven

import (
	"context"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// JobStore is the durable, priority-ordered embedding job queue.
// It is designed for multiple concurrent workers polling ClaimNext;
// correctness relies on the claim being a single atomic conditional
// transition so that exactly one worker owns a job at a time.
type JobStore interface {
	// Enqueue creates a pending job for a document.
	Enqueue(ctx context.Context, job *domain.EmbeddingJob) error

	// ClaimNext atomically claims the best eligible pending job:
	// status pending, available_at <= now, ordered by priority DESC,
	// then available_at ASC, then created_at ASC. The claimed job
	// moves to processing with attempts incremented and a lease.
	// Returns domain.ErrNoJobAvailable when nothing is claimable.
	ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*domain.EmbeddingJob, error)

	// Complete marks the job completed and persists the chunk
	// embeddings in the same transaction: either both succeed or
	// neither does.
	Complete(ctx context.Context, jobID string, embedded []domain.Chunk) error

	// Fail records a failure. While attempts remain the job returns to
	// pending with available_at pushed out by domain.RetryBackoff;
	// once the budget is spent it becomes terminally failed.
	Fail(ctx context.Context, jobID string, cause string, now time.Time) error

	// FailTerminal marks a job failed immediately, regardless of
	// remaining attempts. Used for fatal errors where a retry cannot
	// succeed, such as a provider dimension mismatch.
	FailTerminal(ctx context.Context, jobID string, cause string, now time.Time) error

	// ExtendLease renews the visibility window for a long-running job.
	ExtendLease(ctx context.Context, jobID string, until time.Time) error

	// ReclaimStale returns processing jobs whose lease expired to
	// pending so another worker can claim them. Reports how many jobs
	// were reclaimed.
	ReclaimStale(ctx context.Context, now time.Time) (int, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id string) (*domain.EmbeddingJob, error)

	// GetJobByDocument retrieves the most recent job for a document.
	GetJobByDocument(ctx context.Context, documentID string) (*domain.EmbeddingJob, error)

	// Stats aggregates job counts by status.
	Stats(ctx context.Context) (domain.QueueStats, error)

	// PurgeCompleted deletes completed jobs older than the cutoff.
	// Returns the number of jobs removed.
	PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error)
}
