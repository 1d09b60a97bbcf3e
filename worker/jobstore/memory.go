package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"videoEditor/worker/domain"
)

// Memory keeps job records in process. The map mutex guards membership only;
// each record carries its own lock, so updates to different jobs never
// serialize on a shared lock.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]*memoryEntry
}

type memoryEntry struct {
	mu  sync.Mutex
	job *domain.Job
}

func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]*memoryEntry)}
}

func (m *Memory) Create(ctx context.Context, params domain.Parameters) (*domain.Job, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Params:    params,
		Status:    domain.StatusQueued,
		Message:   "job queued for processing",
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.jobs[job.ID] = &memoryEntry{job: job}
	m.mu.Unlock()

	return job.Clone(), nil
}

func (m *Memory) entry(id string) (*memoryEntry, bool) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	return e, ok
}

func (m *Memory) Get(ctx context.Context, id string) (*domain.Job, error) {
	e, ok := m.entry(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

func (m *Memory) Update(ctx context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error) {
	e, ok := m.entry(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Mutate a copy so a failed fn leaves the record untouched and readers
	// never observe a half-applied mutation.
	working := e.job.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	e.job = working
	return working.Clone(), nil
}

func (m *Memory) ListExpired(ctx context.Context, now time.Time, retention time.Duration) ([]string, error) {
	cutoff := now.Add(-retention)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, e := range m.jobs {
		e.mu.Lock()
		if e.job.Status.Terminal() && e.job.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	return ids, nil
}

func (m *Memory) ListRequeueable(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, e := range m.jobs {
		e.mu.Lock()
		if e.job.Status == domain.StatusQueued && !e.job.NextAttemptAt.IsZero() && !e.job.NextAttemptAt.After(now) {
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	return ids, nil
}

func (m *Memory) ListUnfinished(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, e := range m.jobs {
		e.mu.Lock()
		s := e.job.Status
		if !s.Terminal() && s != domain.StatusQueued {
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	return ids, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	e, ok := m.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	e.mu.Lock()
	terminal := e.job.Status.Terminal()
	e.mu.Unlock()
	if !terminal {
		return ErrJobActive
	}

	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
	return nil
}
