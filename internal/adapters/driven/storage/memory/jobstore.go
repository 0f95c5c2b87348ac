package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore. A single
// mutex stands in for the SQLite store's conditional updates, which
// keeps claims exclusive under concurrent workers.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.EmbeddingJob

	// docs receives document status updates on terminal transitions,
	// matching the SQLite store's same-transaction behaviour. Optional.
	docs *DocumentStore
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]domain.EmbeddingJob)}
}

// NewJobStoreWithDocuments creates a job store that also updates
// document embedding status on Complete/Fail, mirroring the SQLite
// store's transactional coupling.
func NewJobStoreWithDocuments(docs *DocumentStore) *JobStore {
	return &JobStore{jobs: make(map[string]domain.EmbeddingJob), docs: docs}
}

// Enqueue creates a pending job for a document.
func (s *JobStore) Enqueue(_ context.Context, job *domain.EmbeddingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := *job
	if j.MaxAttempts == 0 {
		j.MaxAttempts = domain.DefaultMaxAttempts
	}
	if j.Status == "" {
		j.Status = domain.JobPending
	}
	now := time.Now().UTC()
	if j.AvailableAt.IsZero() {
		j.AvailableAt = now
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	s.jobs[j.ID] = j
	return nil
}

// ClaimNext atomically claims the best eligible pending job.
func (s *JobStore) ClaimNext(_ context.Context, now time.Time, lease time.Duration) (*domain.EmbeddingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []domain.EmbeddingJob
	for _, j := range s.jobs {
		if j.Status == domain.JobPending && !j.AvailableAt.After(now) {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoJobAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		if !candidates[i].AvailableAt.Equal(candidates[j].AvailableAt) {
			return candidates[i].AvailableAt.Before(candidates[j].AvailableAt)
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	claimed := candidates[0]
	claimed.Status = domain.JobProcessing
	claimed.Attempts++
	claimed.LeaseExpiresAt = now.Add(lease)
	claimed.UpdatedAt = now
	s.jobs[claimed.ID] = claimed
	return &claimed, nil
}

// Complete marks the job completed and persists the chunk embeddings.
func (s *JobStore) Complete(ctx context.Context, jobID string, embedded []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Terminal() {
		return domain.ErrJobTerminal
	}

	j.Status = domain.JobCompleted
	j.LastError = ""
	j.LeaseExpiresAt = time.Time{}
	j.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = j

	if s.docs != nil {
		if err := s.docs.UpsertChunks(ctx, j.DocumentID, embedded); err != nil {
			return err
		}
		return s.docs.SetEmbeddingStatus(ctx, j.DocumentID, domain.EmbeddingCompleted)
	}
	return nil
}

// Fail records a failure, scheduling a retry while attempts remain.
func (s *JobStore) Fail(ctx context.Context, jobID string, cause string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Terminal() {
		return domain.ErrJobTerminal
	}

	j.LastError = cause
	j.LeaseExpiresAt = time.Time{}
	j.UpdatedAt = now
	if j.Attempts >= j.MaxAttempts {
		j.Status = domain.JobFailed
	} else {
		j.Status = domain.JobPending
		j.AvailableAt = now.Add(domain.RetryBackoff(j.Attempts))
	}
	s.jobs[jobID] = j

	if s.docs != nil && j.Status == domain.JobFailed {
		return s.docs.SetEmbeddingStatus(ctx, j.DocumentID, domain.EmbeddingFailed)
	}
	return nil
}

// FailTerminal marks a job failed immediately, regardless of attempts.
func (s *JobStore) FailTerminal(ctx context.Context, jobID string, cause string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}

	j.Status = domain.JobFailed
	j.LastError = cause
	j.LeaseExpiresAt = time.Time{}
	j.UpdatedAt = now
	s.jobs[jobID] = j

	if s.docs != nil {
		return s.docs.SetEmbeddingStatus(ctx, j.DocumentID, domain.EmbeddingFailed)
	}
	return nil
}

// ExtendLease renews the visibility window for a processing job.
func (s *JobStore) ExtendLease(_ context.Context, jobID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobProcessing {
		return domain.ErrNotFound
	}
	j.LeaseExpiresAt = until
	s.jobs[jobID] = j
	return nil
}

// ReclaimStale handles lease-expired processing jobs. The claim already
// charged the attempt, so jobs with budget left go back to pending and
// exhausted jobs become failed, taking their document with them. Returns
// the number returned to pending.
func (s *JobStore) ReclaimStale(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	for id, j := range s.jobs {
		if j.Status != domain.JobProcessing || !j.LeaseExpiresAt.Before(now) {
			continue
		}

		j.LeaseExpiresAt = time.Time{}
		j.UpdatedAt = now
		if j.Attempts >= j.MaxAttempts {
			j.Status = domain.JobFailed
			j.LastError = "lease expired with no attempts remaining"
			s.jobs[id] = j
			if s.docs != nil {
				if err := s.docs.SetEmbeddingStatus(ctx, j.DocumentID, domain.EmbeddingFailed); err != nil {
					return reclaimed, err
				}
			}
			continue
		}

		j.Status = domain.JobPending
		s.jobs[id] = j
		reclaimed++
	}
	return reclaimed, nil
}

// GetJob retrieves a job by ID.
func (s *JobStore) GetJob(_ context.Context, id string) (*domain.EmbeddingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

// GetJobByDocument retrieves the most recent job for a document.
func (s *JobStore) GetJobByDocument(_ context.Context, documentID string) (*domain.EmbeddingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.EmbeddingJob
	for _, j := range s.jobs {
		if j.DocumentID != documentID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			jj := j
			latest = &jj
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

// Stats aggregates job counts by status.
func (s *JobStore) Stats(_ context.Context) (domain.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.QueueStats
	for _, j := range s.jobs {
		switch j.Status {
		case domain.JobPending:
			stats.Pending++
		case domain.JobProcessing:
			stats.Processing++
		case domain.JobCompleted:
			stats.Completed++
		case domain.JobFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// PurgeCompleted deletes completed jobs older than the cutoff.
func (s *JobStore) PurgeCompleted(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, j := range s.jobs {
		if j.Status == domain.JobCompleted && j.UpdatedAt.Before(olderThan) {
			delete(s.jobs, id)
			purged++
		}
	}
	return purged, nil
}
