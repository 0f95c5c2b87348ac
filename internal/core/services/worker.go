package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
	"github.com/ledgerline/fiscalia/internal/core/ports/driving"
	"github.com/ledgerline/fiscalia/internal/logger"
)

// Ensure WorkerPool implements the interface.
var _ driving.WorkerPool = (*WorkerPool)(nil)

// Default worker pool configuration.
const (
	DefaultWorkers         = 2
	DefaultPollInterval    = 2 * time.Second
	DefaultReclaimInterval = time.Minute
)

// WorkerPool drives embedding jobs to completion. Each worker polls
// the job store, embeds the job's chunks through the gateway, and
// persists the result. A background loop reclaims jobs whose worker
// died mid-lease.
type WorkerPool struct {
	jobStore driven.JobStore
	docStore driven.DocumentStore
	embedder driven.EmbeddingService

	workers         int
	pollInterval    time.Duration
	reclaimInterval time.Duration
	lease           time.Duration
}

// PoolOption configures a WorkerPool.
type PoolOption func(*WorkerPool)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) PoolOption {
	return func(p *WorkerPool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPollInterval sets how long an idle worker sleeps between claims.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithLease sets the job visibility window.
func WithLease(d time.Duration) PoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.lease = d
		}
	}
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(
	jobStore driven.JobStore,
	docStore driven.DocumentStore,
	embedder driven.EmbeddingService,
	opts ...PoolOption,
) *WorkerPool {
	p := &WorkerPool{
		jobStore:        jobStore,
		docStore:        docStore,
		embedder:        embedder,
		workers:         DefaultWorkers,
		pollInterval:    DefaultPollInterval,
		reclaimInterval: DefaultReclaimInterval,
		lease:           domain.DefaultLease,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the workers and the stale-job reclaimer, blocking until
// the context is cancelled.
func (p *WorkerPool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.workLoop(ctx, worker)
		})
	}

	g.Go(func() error {
		return p.reclaimLoop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// workLoop claims and processes jobs until the context is cancelled.
func (p *WorkerPool) workLoop(ctx context.Context, worker int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := p.jobStore.ClaimNext(ctx, time.Now().UTC(), p.lease)
		if err != nil {
			if errors.Is(err, domain.ErrNoJobAvailable) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.pollInterval):
				}
				continue
			}
			return err
		}

		logger.Debug("worker %d claimed job %s (document %s, attempt %d/%d)",
			worker, job.ID, job.DocumentID, job.Attempts, job.MaxAttempts)
		p.process(ctx, job)
	}
}

// process embeds the job's chunks and records the outcome. Errors are
// recorded against the job, never returned, so one bad job cannot take
// a worker down.
func (p *WorkerPool) process(ctx context.Context, job *domain.EmbeddingJob) {
	if err := p.docStore.SetEmbeddingStatus(ctx, job.DocumentID, domain.EmbeddingProcessing); err != nil {
		logger.Debug("job %s: setting document status: %v", job.ID, err)
	}

	// Renew the lease while the provider calls run
	renewCtx, stopRenewal := context.WithCancel(ctx)
	defer stopRenewal()
	go p.renewLease(renewCtx, job.ID)

	chunks, err := p.docStore.GetChunks(ctx, job.DocumentID)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}

	embedded := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := p.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			p.fail(ctx, job, err)
			return
		}
		chunk.Embedding = vector
		embedded = append(embedded, chunk)
	}

	stopRenewal()

	if err := p.jobStore.Complete(ctx, job.ID, embedded); err != nil {
		p.fail(ctx, job, err)
		return
	}
	logger.Debug("job %s completed: %d chunks embedded", job.ID, len(embedded))
}

// fail records a job failure, terminally for errors a retry cannot fix.
func (p *WorkerPool) fail(ctx context.Context, job *domain.EmbeddingJob, cause error) {
	now := time.Now().UTC()

	if errors.Is(cause, domain.ErrDimensionMismatch) {
		logger.Debug("job %s failed terminally: %v", job.ID, cause)
		if err := p.jobStore.FailTerminal(ctx, job.ID, cause.Error(), now); err != nil {
			logger.Debug("job %s: recording terminal failure: %v", job.ID, err)
		}
		return
	}

	logger.Debug("job %s failed: %v", job.ID, cause)
	if err := p.jobStore.Fail(ctx, job.ID, cause.Error(), now); err != nil {
		logger.Debug("job %s: recording failure: %v", job.ID, err)
	}

	// Restore pending status for documents whose job will be retried
	current, err := p.jobStore.GetJob(ctx, job.ID)
	if err == nil && current.Status == domain.JobPending {
		if err := p.docStore.SetEmbeddingStatus(ctx, job.DocumentID, domain.EmbeddingPending); err != nil {
			logger.Debug("job %s: resetting document status: %v", job.ID, err)
		}
	}
}

// renewLease extends the job lease at half the lease interval until
// cancelled.
func (p *WorkerPool) renewLease(ctx context.Context, jobID string) {
	ticker := time.NewTicker(p.lease / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			until := time.Now().UTC().Add(p.lease)
			if err := p.jobStore.ExtendLease(ctx, jobID, until); err != nil {
				logger.Debug("job %s: extending lease: %v", jobID, err)
				return
			}
		}
	}
}

// reclaimLoop periodically returns expired-lease jobs to pending.
func (p *WorkerPool) reclaimLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := p.jobStore.ReclaimStale(ctx, time.Now().UTC())
			if err != nil {
				logger.Debug("reclaiming stale jobs: %v", err)
				continue
			}
			if n > 0 {
				logger.Debug("reclaimed %d stale jobs", n)
			}
		}
	}
}
