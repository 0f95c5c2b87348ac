package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
)

// jobStore implements driven.JobStore over the embedding_jobs table.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// Enqueue adds a new embedding job in pending state.
func (s *jobStore) Enqueue(ctx context.Context, job *domain.EmbeddingJob) error {
	if job == nil || job.ID == "" || job.DocumentID == "" {
		return domain.ErrInvalidInput
	}

	chunkIDsJSON, err := json.Marshal(job.ChunkIDs)
	if err != nil {
		return fmt.Errorf("marshalling chunk ids: %w", err)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.AvailableAt.IsZero() {
		job.AvailableAt = now
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = domain.DefaultMaxAttempts
	}
	if job.Status == "" {
		job.Status = domain.JobPending
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO embedding_jobs
			(id, document_id, status, priority, attempts, max_attempts,
			 last_error, chunk_ids, available_at, lease_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.DocumentID, string(job.Status), job.Priority, job.Attempts,
		job.MaxAttempts, nullString(job.LastError), string(chunkIDsJSON),
		formatTime(job.AvailableAt), formatNullableTime(job.LeaseExpiresAt),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt))

	if err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the next due pending job. Claim order is
// priority descending, then available_at, then created_at. Without SKIP
// LOCKED support the claim is a conditional UPDATE retried against the
// next candidate when another worker wins the row.
func (s *jobStore) ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*domain.EmbeddingJob, error) {
	if lease <= 0 {
		lease = domain.DefaultLease
	}
	nowStr := formatTime(now)
	leaseExpiry := formatTime(now.Add(lease))

	for {
		var id string
		err := s.store.db.QueryRowContext(ctx, `
			SELECT id FROM embedding_jobs
			WHERE status = ? AND available_at <= ?
			ORDER BY priority DESC, available_at ASC, created_at ASC
			LIMIT 1
		`, string(domain.JobPending), nowStr).Scan(&id)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, domain.ErrNoJobAvailable
			}
			return nil, fmt.Errorf("selecting claim candidate: %w", err)
		}

		res, err := s.store.db.ExecContext(ctx, `
			UPDATE embedding_jobs
			SET status = ?, attempts = attempts + 1,
			    lease_expires_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(domain.JobProcessing), leaseExpiry, nowStr,
			id, string(domain.JobPending))
		if err != nil {
			return nil, fmt.Errorf("claiming job: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("checking claim: %w", err)
		}
		if affected == 0 {
			// Lost the race; try the next candidate
			continue
		}

		return s.GetJob(ctx, id)
	}
}

// Complete marks a job completed and persists chunk embeddings in the
// same transaction, so a crash never leaves a completed job without its
// vectors.
func (s *jobStore) Complete(ctx context.Context, jobID string, embedded []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status, documentID string
	err = tx.QueryRowContext(ctx,
		"SELECT status, document_id FROM embedding_jobs WHERE id = ?", jobID).
		Scan(&status, &documentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("querying job: %w", err)
	}
	if domain.JobStatus(status).Terminal() {
		return domain.ErrJobTerminal
	}

	now := formatTime(time.Now())

	for _, chunk := range embedded {
		res, err := tx.ExecContext(ctx, `
			UPDATE chunks SET embedding = ? WHERE id = ?
		`, float32SliceToBytes(chunk.Embedding), chunk.ID)
		if err != nil {
			return fmt.Errorf("persisting chunk embedding: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking chunk update: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: chunk %s", domain.ErrNotFound, chunk.ID)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE embedding_jobs
		SET status = ?, last_error = NULL, lease_expires_at = NULL, updated_at = ?
		WHERE id = ?
	`, string(domain.JobCompleted), now, jobID)
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET embedding_status = ?, updated_at = ? WHERE id = ?
	`, string(domain.EmbeddingCompleted), now, documentID)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Fail records a failed attempt. Jobs with attempts remaining go back
// to pending with exponential backoff; exhausted jobs become failed
// permanently, and the owning document is marked failed with them.
func (s *jobStore) Fail(ctx context.Context, jobID string, cause string, now time.Time) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status, documentID string
	var attempts, maxAttempts int
	err = tx.QueryRowContext(ctx, `
		SELECT status, document_id, attempts, max_attempts
		FROM embedding_jobs WHERE id = ?
	`, jobID).Scan(&status, &documentID, &attempts, &maxAttempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("querying job: %w", err)
	}
	if domain.JobStatus(status).Terminal() {
		return domain.ErrJobTerminal
	}

	nowStr := formatTime(now)

	if attempts >= maxAttempts {
		_, err = tx.ExecContext(ctx, `
			UPDATE embedding_jobs
			SET status = ?, last_error = ?, lease_expires_at = NULL, updated_at = ?
			WHERE id = ?
		`, string(domain.JobFailed), cause, nowStr, jobID)
		if err != nil {
			return fmt.Errorf("failing job: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET embedding_status = ?, updated_at = ? WHERE id = ?
		`, string(domain.EmbeddingFailed), nowStr, documentID)
		if err != nil {
			return fmt.Errorf("updating document status: %w", err)
		}
	} else {
		availableAt := now.Add(domain.RetryBackoff(attempts))
		_, err = tx.ExecContext(ctx, `
			UPDATE embedding_jobs
			SET status = ?, last_error = ?, available_at = ?,
			    lease_expires_at = NULL, updated_at = ?
			WHERE id = ?
		`, string(domain.JobPending), cause, formatTime(availableAt), nowStr, jobID)
		if err != nil {
			return fmt.Errorf("rescheduling job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FailTerminal marks a job failed immediately regardless of remaining
// attempts. The owning document is marked failed with it.
func (s *jobStore) FailTerminal(ctx context.Context, jobID string, cause string, now time.Time) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status, documentID string
	err = tx.QueryRowContext(ctx,
		"SELECT status, document_id FROM embedding_jobs WHERE id = ?", jobID).
		Scan(&status, &documentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("querying job: %w", err)
	}
	if domain.JobStatus(status).Terminal() {
		return domain.ErrJobTerminal
	}

	nowStr := formatTime(now)

	_, err = tx.ExecContext(ctx, `
		UPDATE embedding_jobs
		SET status = ?, last_error = ?, lease_expires_at = NULL, updated_at = ?
		WHERE id = ?
	`, string(domain.JobFailed), cause, nowStr, jobID)
	if err != nil {
		return fmt.Errorf("failing job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET embedding_status = ?, updated_at = ? WHERE id = ?
	`, string(domain.EmbeddingFailed), nowStr, documentID)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ExtendLease renews the visibility window for an in-flight job.
func (s *jobStore) ExtendLease(ctx context.Context, jobID string, until time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE embedding_jobs
		SET lease_expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, formatTime(until), formatTime(time.Now()), jobID, string(domain.JobProcessing))
	if err != nil {
		return fmt.Errorf("extending lease: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking lease update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReclaimStale handles processing jobs whose lease has expired. A stale
// lease spends the attempt the claim already charged: jobs with budget
// left go back to pending, exhausted jobs become failed and take their
// document with them. Returns the number returned to pending.
func (s *jobStore) ReclaimStale(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	nowStr := formatTime(now)
	staleCond := `status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?`

	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET embedding_status = ?, updated_at = ?
		WHERE id IN (
			SELECT document_id FROM embedding_jobs
			WHERE `+staleCond+` AND attempts >= max_attempts
		)
	`, string(domain.EmbeddingFailed), nowStr,
		string(domain.JobProcessing), nowStr)
	if err != nil {
		return 0, fmt.Errorf("failing documents of exhausted jobs: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE embedding_jobs
		SET status = ?, last_error = ?, lease_expires_at = NULL, updated_at = ?
		WHERE `+staleCond+` AND attempts >= max_attempts
	`, string(domain.JobFailed), "lease expired with no attempts remaining", nowStr,
		string(domain.JobProcessing), nowStr)
	if err != nil {
		return 0, fmt.Errorf("failing exhausted stale jobs: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE embedding_jobs
		SET status = ?, lease_expires_at = NULL, available_at = ?, updated_at = ?
		WHERE `+staleCond+`
	`, string(domain.JobPending), nowStr, nowStr,
		string(domain.JobProcessing), nowStr)
	if err != nil {
		return 0, fmt.Errorf("reclaiming stale jobs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking reclaimed rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return int(affected), nil
}

// GetJob retrieves a job by ID.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.EmbeddingJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, status, priority, attempts, max_attempts,
		       last_error, chunk_ids, available_at, lease_expires_at, created_at, updated_at
		FROM embedding_jobs WHERE id = ?
	`, id)
	return scanJob(row)
}

// GetJobByDocument retrieves the most recent job for a document.
func (s *jobStore) GetJobByDocument(ctx context.Context, documentID string) (*domain.EmbeddingJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, status, priority, attempts, max_attempts,
		       last_error, chunk_ids, available_at, lease_expires_at, created_at, updated_at
		FROM embedding_jobs WHERE document_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, documentID)
	return scanJob(row)
}

// Stats reports queue depth per status.
func (s *jobStore) Stats(ctx context.Context) (domain.QueueStats, error) {
	var stats domain.QueueStats

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM embedding_jobs GROUP BY status")
	if err != nil {
		return stats, fmt.Errorf("querying queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scanning stats row: %w", err)
		}
		switch domain.JobStatus(status) {
		case domain.JobPending:
			stats.Pending = count
		case domain.JobProcessing:
			stats.Processing = count
		case domain.JobCompleted:
			stats.Completed = count
		case domain.JobFailed:
			stats.Failed = count
		}
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterating stats rows: %w", err)
	}
	return stats, nil
}

// PurgeCompleted deletes completed jobs older than the cutoff.
func (s *jobStore) PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM embedding_jobs WHERE status = ? AND updated_at < ?
	`, string(domain.JobCompleted), formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("purging completed jobs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking purged rows: %w", err)
	}
	return int(affected), nil
}

func scanJob(row *sql.Row) (*domain.EmbeddingJob, error) {
	var job domain.EmbeddingJob
	var status, chunkIDsJSON, availableAt, createdAt, updatedAt string
	var lastError, leaseExpiresAt sql.NullString

	err := row.Scan(&job.ID, &job.DocumentID, &status, &job.Priority, &job.Attempts,
		&job.MaxAttempts, &lastError, &chunkIDsJSON, &availableAt, &leaseExpiresAt,
		&createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	job.LastError = lastError.String
	if err := json.Unmarshal([]byte(chunkIDsJSON), &job.ChunkIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk ids: %w", err)
	}
	job.AvailableAt = parseTime(availableAt)
	job.LeaseExpiresAt = parseNullableTime(leaseExpiresAt)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)

	return &job, nil
}
