package domain

import "time"

// JobStatus is the finite-state enum for embedding jobs. Jobs live in
// one authoritative store and are mutated only through the atomic
// transitions below, never as free-floating mutable objects.
type JobStatus string

const (
	// JobPending means the job is waiting to be claimed.
	JobPending JobStatus = "pending"

	// JobProcessing means a worker holds the job under a lease.
	JobProcessing JobStatus = "processing"

	// JobCompleted means the job finished and its chunk embeddings
	// were persisted in the same transaction.
	JobCompleted JobStatus = "completed"

	// JobFailed means the attempt budget is exhausted. Terminal:
	// a failed job is never reclaimed.
	JobFailed JobStatus = "failed"
)

// DefaultMaxAttempts is the retry ceiling for new jobs.
const DefaultMaxAttempts = 3

// DefaultLease is how long a claimed job stays invisible to other
// workers before it becomes reclaimable.
const DefaultLease = 10 * time.Minute

// Backoff tuning. The retry delay doubles per attempt from BackoffBase
// up to BackoffCap.
const (
	BackoffBase = 30 * time.Second
	BackoffCap  = time.Hour
)

// EmbeddingJob is a unit of asynchronous embedding work.
type EmbeddingJob struct {
	// ID is the unique identifier for the job.
	ID string

	// DocumentID is the document whose chunks this job embeds.
	DocumentID string

	// Status is the current lifecycle state.
	Status JobStatus

	// Priority orders claims; higher runs first.
	Priority int

	// Attempts counts claims so far. Never exceeds MaxAttempts.
	Attempts int

	// MaxAttempts is the retry ceiling.
	MaxAttempts int

	// LastError holds the most recent failure message, if any.
	LastError string

	// ChunkIDs identifies the chunks to embed.
	ChunkIDs []string

	// AvailableAt is the earliest eligible claim time. Pushed into
	// the future by backoff after a transient failure.
	AvailableAt time.Time

	// LeaseExpiresAt is when a processing job becomes reclaimable.
	// Zero unless Status is processing.
	LeaseExpiresAt time.Time

	// CreatedAt is when the job was enqueued.
	CreatedAt time.Time

	// UpdatedAt is when the job last changed state.
	UpdatedAt time.Time
}

// Terminal reports whether a job in this status can never run again.
func (s JobStatus) Terminal() bool {
	return s == JobFailed
}

// Terminal reports whether the job can never run again.
func (j *EmbeddingJob) Terminal() bool {
	return j.Status.Terminal()
}

// RetryBackoff returns the delay before the next claim after the given
// number of attempts. Exponential, doubling from BackoffBase, capped at
// BackoffCap: strictly increasing with attempt count until the cap.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= BackoffCap {
			return BackoffCap
		}
	}
	return d
}

// QueueStats aggregates job counts by status.
type QueueStats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
