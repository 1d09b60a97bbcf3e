package expire

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"videoEditor/worker/domain"
	"videoEditor/worker/jobstore"
	"videoEditor/worker/storage"
)

// Forgetter drops any cached status snapshot for a job; a nil Forgetter is
// a no-op.
type Forgetter interface {
	Forget(ctx context.Context, jobID string)
}

// Sweeper removes job records, published artifacts and cached snapshots older
// than the retention window. Records still being processed are never touched;
// the store's Delete refuses non-terminal jobs.
type Sweeper struct {
	store     jobstore.Store
	backend   storage.Backend
	cache     Forgetter
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

func New(store jobstore.Store, backend storage.Backend, cache Forgetter, retention, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:     store,
		backend:   backend,
		cache:     cache,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps on a ticker until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: mark expired, drop the published artifact, drop
// the record.
func (s *Sweeper) Sweep(ctx context.Context) {
	ids, err := s.store.ListExpired(ctx, time.Now().UTC(), s.retention)
	if err != nil {
		s.logger.Error("list expired jobs", zap.Error(err))
		return
	}

	removed := 0
	for _, id := range ids {
		_, err := s.store.Update(ctx, id, func(j *domain.Job) error {
			if !j.Status.Terminal() {
				return jobstore.ErrJobActive
			}
			j.Status = domain.StatusExpired
			j.Message = "job record expired"
			return nil
		})
		if err != nil {
			if !errors.Is(err, jobstore.ErrJobActive) {
				s.logger.Error("mark job expired", zap.String("job_id", id), zap.Error(err))
			}
			continue
		}

		if err := s.backend.Delete(ctx, storage.ResultKey(id)); err != nil {
			s.logger.Warn("delete published artifact",
				zap.String("job_id", id),
				zap.Error(err),
			)
		}
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("delete expired record", zap.String("job_id", id), zap.Error(err))
			continue
		}
		if s.cache != nil {
			s.cache.Forget(ctx, id)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("expired jobs swept", zap.Int("count", removed))
	}
}
