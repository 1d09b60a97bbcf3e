package jobstore

import (
	"context"
	"errors"
	"time"

	"videoEditor/worker/domain"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrJobActive is returned by Delete when the record is not yet
	// terminal; the expiry sweep logs it and moves on.
	ErrJobActive = errors.New("job still active")
)

// Store owns the canonical job records. Workers hold only a job id lease and
// write every mutation back through Update, never a private copy across a
// blocking operation.
type Store interface {
	// Create persists a new record in queued state and returns it.
	Create(ctx context.Context, params domain.Parameters) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	// Update applies fn as an atomic read-modify-write. Concurrent updates
	// to the same job are serialized; updates to different jobs proceed
	// independently. Returning an error from fn abandons the write.
	Update(ctx context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error)
	// ListExpired reports terminal jobs older than the retention window.
	ListExpired(ctx context.Context, now time.Time, retention time.Duration) ([]string, error)
	// ListRequeueable reports queued jobs whose retry backoff has elapsed.
	ListRequeueable(ctx context.Context, now time.Time) ([]string, error)
	// ListUnfinished reports jobs stranded mid-pipeline, used on startup to
	// requeue work orphaned by a crash.
	ListUnfinished(ctx context.Context) ([]string, error)
	// Delete removes a terminal, expired record. It fails with ErrJobActive
	// for any non-terminal job.
	Delete(ctx context.Context, id string) error
}
