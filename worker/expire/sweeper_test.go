package expire

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"videoEditor/worker/domain"
	"videoEditor/worker/jobstore"
	"videoEditor/worker/storage"
)

type recordingForgetter struct {
	forgotten []string
}

func (r *recordingForgetter) Forget(_ context.Context, jobID string) {
	r.forgotten = append(r.forgotten, jobID)
}

func TestSweeper_RemovesOldTerminalJobs(t *testing.T) {
	store := jobstore.NewMemory()
	backend, err := storage.NewLocal(t.TempDir(), "/api/v1/download")
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	params := domain.Parameters{
		VideoURL:        "https://example.com/v.mp4",
		CustomerName:    "Acme",
		TransitionStyle: domain.TransitionFade,
		EncodingPreset:  "standard",
	}

	// Old completed job with a published artifact.
	old, _ := store.Create(ctx, params)
	store.Update(ctx, old.ID, func(j *domain.Job) error {
		j.Complete("outputs/"+j.ID+"_final.mp4", now)
		j.CreatedAt = now.Add(-48 * time.Hour)
		return nil
	})
	if _, err := backend.Write(ctx, storage.ResultKey(old.ID), strings.NewReader("video")); err != nil {
		t.Fatalf("Write artifact: %v", err)
	}

	// Old but still processing: the sweep must leave it alone.
	active, _ := store.Create(ctx, params)
	store.Update(ctx, active.ID, func(j *domain.Job) error {
		j.CreatedAt = now.Add(-48 * time.Hour)
		return j.Transition(domain.StatusEncoding)
	})

	// Recent completed job inside the retention window.
	fresh, _ := store.Create(ctx, params)
	store.Update(ctx, fresh.ID, func(j *domain.Job) error {
		j.Complete("outputs/"+j.ID+"_final.mp4", now)
		return nil
	})

	forgetter := &recordingForgetter{}
	s := New(store, backend, forgetter, 24*time.Hour, time.Hour, zaptest.NewLogger(t))
	s.Sweep(ctx)

	if _, err := store.Get(ctx, old.ID); !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Errorf("Expected expired record removed, got %v", err)
	}
	if len(forgetter.forgotten) != 1 || forgetter.forgotten[0] != old.ID {
		t.Errorf("Expected cached snapshot dropped for %s, got %v", old.ID, forgetter.forgotten)
	}
	if _, err := backend.Read(ctx, storage.ResultKey(old.ID)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected artifact removed, got %v", err)
	}

	if j, err := store.Get(ctx, active.ID); err != nil || j.Status != domain.StatusEncoding {
		t.Errorf("Active job touched by sweep: %v %v", j, err)
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Errorf("Fresh job removed by sweep: %v", err)
	}
}

func TestSweeper_MissingArtifactDoesNotBlockRemoval(t *testing.T) {
	store := jobstore.NewMemory()
	backend, err := storage.NewLocal(t.TempDir(), "/api/v1/download")
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	job, _ := store.Create(ctx, domain.Parameters{
		VideoURL:        "https://example.com/v.mp4",
		CustomerName:    "Acme",
		TransitionStyle: domain.TransitionFade,
		EncodingPreset:  "standard",
	})
	store.Update(ctx, job.ID, func(j *domain.Job) error {
		j.Fail(domain.NewError(domain.KindEncodeFailed, "boom"), now)
		j.CreatedAt = now.Add(-48 * time.Hour)
		return nil
	})

	s := New(store, backend, nil, 24*time.Hour, time.Hour, zaptest.NewLogger(t))
	s.Sweep(ctx)

	if _, err := store.Get(ctx, job.ID); !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Errorf("Expected failed record removed despite missing artifact, got %v", err)
	}
}
