package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"videoEditor/worker/domain"
	"videoEditor/worker/jobstore"
)

var errNotStranded = errors.New("job not stranded")

// ErrQueueFull is returned by Submit when a bounded queue is at capacity.
// With capacity 0 (unbounded) Submit never blocks and never fails.
var ErrQueueFull = domain.NewError(domain.KindRejected, "job queue is full")

// Executor runs one job's pipeline to completion. The dispatcher does not
// interpret the outcome; retry state lives on the job record.
type Executor interface {
	Execute(ctx context.Context, jobID string)
}

type Options struct {
	// Workers is the hard ceiling on concurrently running pipelines.
	Workers int
	// QueueCapacity bounds the pending queue; 0 means unbounded.
	QueueCapacity int
	// RequeueInterval is how often eligible retries are rescheduled.
	RequeueInterval time.Duration
}

// Dispatcher feeds a fixed pool of workers from one FIFO queue. A worker that
// finishes a job, successfully or not, immediately pulls the next one.
type Dispatcher struct {
	store  jobstore.Store
	exec   Executor
	logger *zap.Logger
	opts   Options

	mu      sync.Mutex
	pending []string
	wake    chan struct{}

	active atomic.Int64
	wg     sync.WaitGroup
}

func New(store jobstore.Store, exec Executor, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RequeueInterval <= 0 {
		opts.RequeueInterval = 10 * time.Second
	}
	return &Dispatcher{
		store:  store,
		exec:   exec,
		logger: logger,
		opts:   opts,
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the worker slots and the retry loop, and requeues jobs that
// a previous process left mid-pipeline. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	d.recover(ctx)

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.wg.Add(1)
	go d.requeueLoop(ctx)
}

// Submit enqueues an already-created job id. Non-blocking: a bounded queue at
// capacity rejects instead of stalling the caller.
func (d *Dispatcher) Submit(jobID string) error {
	d.mu.Lock()
	if d.opts.QueueCapacity > 0 && len(d.pending) >= d.opts.QueueCapacity {
		d.mu.Unlock()
		return ErrQueueFull
	}
	d.pending = append(d.pending, jobID)
	d.mu.Unlock()

	d.signal()
	return nil
}

// Active reports the number of pipelines currently running, for operator
// admission policies on top of Submit.
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

// QueueDepth reports the number of jobs waiting for a slot.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Wait blocks until all workers have exited after their context is canceled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// pop removes the oldest pending id. When more work remains it re-signals so
// another idle worker wakes too; the wake channel alone is not a counter.
func (d *Dispatcher) pop() (string, bool) {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return "", false
	}
	id := d.pending[0]
	d.pending = d.pending[1:]
	more := len(d.pending) > 0
	d.mu.Unlock()

	if more {
		d.signal()
	}
	return id, true
}

func (d *Dispatcher) worker(ctx context.Context, slot int) {
	defer d.wg.Done()

	for {
		id, ok := d.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-d.wake:
				continue
			}
		}

		d.active.Add(1)
		d.logger.Info("job assigned to slot",
			zap.Int("slot", slot),
			zap.String("job_id", id),
		)
		d.exec.Execute(ctx, id)
		d.active.Add(-1)

		if ctx.Err() != nil {
			return
		}
	}
}

// recover puts jobs stranded in a running status back to queued. Stages are
// re-runnable from the start of the job, so at-least-once delivery is safe.
func (d *Dispatcher) recover(ctx context.Context) {
	ids, err := d.store.ListUnfinished(ctx)
	if err != nil {
		d.logger.Error("recover unfinished jobs", zap.Error(err))
		return
	}
	requeued := 0
	for _, id := range ids {
		_, err := d.store.Update(ctx, id, func(j *domain.Job) error {
			if j.Status.Terminal() || j.Status == domain.StatusQueued {
				return errNotStranded
			}
			// The only allowed backward move: a stranded job returns to
			// the queue for a fresh at-least-once run.
			j.Status = domain.StatusQueued
			j.Message = "requeued after restart"
			return nil
		})
		if err != nil {
			if !errors.Is(err, errNotStranded) {
				d.logger.Error("requeue after restart", zap.String("job_id", id), zap.Error(err))
			}
			continue
		}
		if err := d.Submit(id); err != nil {
			// Queue full: hand the job to the requeue ticker, otherwise it
			// would sit in queued with no marker and never be scheduled.
			d.deferSubmission(ctx, id)
			d.logger.Warn("requeue rejected", zap.String("job_id", id), zap.Error(err))
			continue
		}
		requeued++
	}
	if requeued > 0 {
		d.logger.Info("requeued jobs from previous run", zap.Int("count", requeued))
	}
}

// requeueLoop resubmits jobs whose retry backoff has elapsed. Backoff is
// recorded on the record, never slept inside a worker slot.
func (d *Dispatcher) requeueLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.opts.RequeueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.requeueEligible(ctx)
		}
	}
}

func (d *Dispatcher) requeueEligible(ctx context.Context) {
	ids, err := d.store.ListRequeueable(ctx, time.Now().UTC())
	if err != nil {
		d.logger.Error("list requeueable jobs", zap.Error(err))
		return
	}
	for _, id := range ids {
		// Clear the eligibility marker first so the next tick cannot
		// double-submit the same job.
		_, err := d.store.Update(ctx, id, func(j *domain.Job) error {
			j.NextAttemptAt = time.Time{}
			return nil
		})
		if err != nil {
			d.logger.Error("clear retry marker", zap.String("job_id", id), zap.Error(err))
			continue
		}
		if err := d.Submit(id); err != nil {
			// Queue full: restore eligibility and try again next tick.
			d.deferSubmission(ctx, id)
			d.logger.Warn("retry submission rejected", zap.String("job_id", id))
			continue
		}
		d.logger.Info("job requeued for retry", zap.String("job_id", id))
	}
}

// deferSubmission marks a queued job eligible for the requeue ticker one
// interval from now, used when the bounded queue rejects a submission.
func (d *Dispatcher) deferSubmission(ctx context.Context, id string) {
	_, err := d.store.Update(ctx, id, func(j *domain.Job) error {
		j.NextAttemptAt = time.Now().UTC().Add(d.opts.RequeueInterval)
		return nil
	})
	if err != nil {
		// A job stuck in queued with no marker is starved; this needs an
		// operator's eye.
		d.logger.Error("defer rejected submission", zap.String("job_id", id), zap.Error(err))
	}
}
