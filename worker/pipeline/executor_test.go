package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"videoEditor/worker/domain"
	"videoEditor/worker/jobstore"
	"videoEditor/worker/media"
	"videoEditor/worker/storage"
)

// fakeToolchain produces tiny placeholder files instead of invoking ffmpeg.
type fakeToolchain struct {
	downloadErr error
	encodeErr   error

	downloads int
	concats   int
	overlays  int
	encodes   int

	lastOverlayText string
	lastStyle       domain.TransitionStyle
}

func (f *fakeToolchain) Download(ctx context.Context, url, destPath string) error {
	f.downloads++
	if f.downloadErr != nil {
		return f.downloadErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte("source"), 0o644)
}

func (f *fakeToolchain) Probe(ctx context.Context, path string) (*media.SourceInfo, error) {
	return &media.SourceInfo{Format: "mp4", SizeBytes: 6, Duration: 12.5}, nil
}

func (f *fakeToolchain) Concat(ctx context.Context, segments []string, style domain.TransitionStyle, destPath string) error {
	f.concats++
	f.lastStyle = style
	return copyFile(segments[0], destPath)
}

func (f *fakeToolchain) Overlay(ctx context.Context, inputPath, destPath, text, watermarkPath string) error {
	f.overlays++
	f.lastOverlayText = text
	return copyFile(inputPath, destPath)
}

func (f *fakeToolchain) Encode(ctx context.Context, inputPath, destPath string, preset domain.Preset) error {
	f.encodes++
	if f.encodeErr != nil {
		return f.encodeErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return copyFile(inputPath, destPath)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// slowToolchain blocks every stage until its context is done.
type slowToolchain struct{ fakeToolchain }

func (s *slowToolchain) Download(ctx context.Context, url, destPath string) error {
	<-ctx.Done()
	return ctx.Err()
}

type testEnv struct {
	store   *jobstore.Memory
	tc      *fakeToolchain
	backend *storage.Local
	exec    *Executor
	scratch string
	root    string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	root := t.TempDir()
	backend, err := storage.NewLocal(root, "/api/v1/download")
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	env := &testEnv{
		store:   jobstore.NewMemory(),
		tc:      &fakeToolchain{},
		backend: backend,
		scratch: t.TempDir(),
		root:    root,
	}
	opts.ScratchDir = env.scratch
	if opts.StageTimeout == 0 {
		opts.StageTimeout = time.Minute
	}
	if opts.ResultURLTTL == 0 {
		opts.ResultURLTTL = 24 * time.Hour
	}
	env.exec = New(env.store, env.tc, backend, domain.NewPresetRegistry(), nil, opts, zaptest.NewLogger(t))
	return env
}

func (env *testEnv) createJob(t *testing.T, params domain.Parameters) *domain.Job {
	t.Helper()
	if params.VideoURL == "" {
		params.VideoURL = "https://example.com/source.mp4"
	}
	if params.CustomerName == "" {
		params.CustomerName = "Acme"
	}
	if params.TransitionStyle == "" {
		params.TransitionStyle = domain.TransitionFade
	}
	if params.EncodingPreset == "" {
		params.EncodingPreset = "standard"
	}
	job, err := env.store.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return job
}

func TestExecutor_SuccessfulRun(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := env.createJob(t, domain.Parameters{})

	env.exec.Execute(context.Background(), job.ID)

	got, err := env.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", got.Status, got.Message)
	}
	if got.Progress != 1.0 {
		t.Errorf("Expected progress 1.0, got %v", got.Progress)
	}
	wantURL := "/api/v1/download/" + job.ID + "_final.mp4"
	if got.ResultLocation != wantURL {
		t.Errorf("Expected result %q, got %q", wantURL, got.ResultLocation)
	}
	if got.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}

	// The published artifact lives in the backend, not in scratch.
	if _, err := os.Stat(filepath.Join(env.root, "outputs", job.ID+"_final.mp4")); err != nil {
		t.Errorf("Published artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.scratch, job.ID)); !os.IsNotExist(err) {
		t.Errorf("Scratch directory survived the run: %v", err)
	}

	// No segments, text, or watermark requested, so compose is a pass-through.
	if env.tc.concats != 0 || env.tc.overlays != 0 {
		t.Errorf("Unexpected compose work: concats=%d overlays=%d", env.tc.concats, env.tc.overlays)
	}
	if env.tc.encodes != 1 {
		t.Errorf("Expected one encode, got %d", env.tc.encodes)
	}
}

func TestExecutor_ComposeWithAssetsAndOverlay(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	env.backend.Write(ctx, storage.IntroKey("brand_intro.mp4"), strings.NewReader("intro"))
	env.backend.Write(ctx, storage.OutroKey("brand_outro.mp4"), strings.NewReader("outro"))

	job := env.createJob(t, domain.Parameters{
		IntroClip:       "brand_intro.mp4",
		OutroClip:       "brand_outro.mp4",
		TransitionStyle: domain.TransitionSlide,
		OverlayText:     true,
		CustomerName:    "Globex",
	})

	env.exec.Execute(ctx, job.ID)

	got, _ := env.store.Get(ctx, job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("Expected completed, got %s (%+v)", got.Status, got.Err)
	}
	if env.tc.concats != 1 {
		t.Errorf("Expected one concat, got %d", env.tc.concats)
	}
	if env.tc.lastStyle != domain.TransitionSlide {
		t.Errorf("Expected slide transition, got %s", env.tc.lastStyle)
	}
	if env.tc.overlays != 1 || env.tc.lastOverlayText != "Globex" {
		t.Errorf("Expected customer text overlay, got overlays=%d text=%q", env.tc.overlays, env.tc.lastOverlayText)
	}
}

func TestExecutor_MissingAssetFailsCompose(t *testing.T) {
	env := newTestEnv(t, Options{RetryMax: 0})
	job := env.createJob(t, domain.Parameters{IntroClip: "nonexistent.mp4"})

	env.exec.Execute(context.Background(), job.ID)

	got, _ := env.store.Get(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if got.Err == nil || got.Err.Kind != domain.KindComposeFailed {
		t.Errorf("Expected compose_failed, got %+v", got.Err)
	}
}

func TestExecutor_DownloadFailureTerminalWithoutRetries(t *testing.T) {
	env := newTestEnv(t, Options{RetryMax: 0})
	env.tc.downloadErr = domain.NewError(domain.KindAcquireFailed, "HTTP 404 from origin")
	job := env.createJob(t, domain.Parameters{})

	env.exec.Execute(context.Background(), job.ID)

	got, _ := env.store.Get(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if got.Err == nil || got.Err.Kind != domain.KindAcquireFailed {
		t.Errorf("Expected acquire_failed, got %+v", got.Err)
	}
	if got.Attempts != 1 {
		t.Errorf("Expected 1 attempt recorded, got %d", got.Attempts)
	}
	if _, err := os.Stat(filepath.Join(env.scratch, job.ID)); !os.IsNotExist(err) {
		t.Errorf("Scratch directory survived the failure: %v", err)
	}
}

func TestExecutor_FailureSchedulesRetryWithBackoff(t *testing.T) {
	env := newTestEnv(t, Options{RetryMax: 2, RetryBackoff: time.Minute})
	env.tc.encodeErr = domain.NewError(domain.KindEncodeFailed, "encoder crashed")
	job := env.createJob(t, domain.Parameters{})

	before := time.Now().UTC()
	env.exec.Execute(context.Background(), job.ID)

	got, _ := env.store.Get(context.Background(), job.ID)
	if got.Status != domain.StatusQueued {
		t.Fatalf("Expected requeued for retry, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("Expected attempts 1, got %d", got.Attempts)
	}
	if got.NextAttemptAt.Before(before.Add(time.Minute - time.Second)) {
		t.Errorf("Expected backoff of about a minute, got %v", got.NextAttemptAt.Sub(before))
	}
	if got.Err != nil {
		t.Errorf("Retryable failure must not settle the error: %+v", got.Err)
	}

	// Second failure doubles the backoff.
	env.exec.Execute(context.Background(), job.ID)
	got, _ = env.store.Get(context.Background(), job.ID)
	if got.Attempts != 2 {
		t.Fatalf("Expected attempts 2, got %d", got.Attempts)
	}
	if got.NextAttemptAt.Before(before.Add(2*time.Minute - time.Second)) {
		t.Errorf("Expected doubled backoff, got %v", got.NextAttemptAt.Sub(before))
	}

	// Third failure exhausts the budget.
	env.exec.Execute(context.Background(), job.ID)
	got, _ = env.store.Get(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("Expected terminal failure after budget, got %s", got.Status)
	}
	if got.Err == nil || got.Err.Kind != domain.KindEncodeFailed {
		t.Errorf("Expected encode_failed, got %+v", got.Err)
	}
}

func TestExecutor_CancellationStopsAtStageBoundary(t *testing.T) {
	env := newTestEnv(t, Options{RetryMax: 2})
	job := env.createJob(t, domain.Parameters{})

	_, err := env.store.Update(context.Background(), job.ID, func(j *domain.Job) error {
		j.CancelRequested = true
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	env.exec.Execute(context.Background(), job.ID)

	got, _ := env.store.Get(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if got.Err == nil || got.Err.Kind != domain.KindCancelled {
		t.Errorf("Expected cancelled, got %+v", got.Err)
	}
	if env.tc.downloads != 0 {
		t.Errorf("Pipeline ran despite cancellation: %d downloads", env.tc.downloads)
	}
}

func TestExecutor_StageTimeout(t *testing.T) {
	env := newTestEnv(t, Options{RetryMax: 0, StageTimeout: 20 * time.Millisecond})
	slow := &slowToolchain{}
	env.exec.tc = slow
	job := env.createJob(t, domain.Parameters{})

	env.exec.Execute(context.Background(), job.ID)

	got, _ := env.store.Get(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if got.Err == nil || got.Err.Kind != domain.KindTimeout {
		t.Errorf("Expected timeout, got %+v", got.Err)
	}
}

func TestExecutor_UnknownPresetFailsEncode(t *testing.T) {
	env := newTestEnv(t, Options{RetryMax: 0})
	job := env.createJob(t, domain.Parameters{EncodingPreset: "ultra"})

	env.exec.Execute(context.Background(), job.ID)

	got, _ := env.store.Get(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if got.Err == nil || got.Err.Kind != domain.KindEncodeFailed {
		t.Errorf("Expected encode_failed, got %+v", got.Err)
	}
}

func TestExecutor_RerunAfterRestartOverwritesDeterministically(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := env.createJob(t, domain.Parameters{})
	ctx := context.Background()

	// Simulate a crash mid-pipeline: a stale artifact already sits in the
	// result slot and the job was requeued by recovery.
	env.backend.Write(ctx, storage.ResultKey(job.ID), strings.NewReader("stale partial bytes"))
	env.store.Update(ctx, job.ID, func(j *domain.Job) error {
		if err := j.Transition(domain.StatusEncoding); err != nil {
			return err
		}
		j.Status = domain.StatusQueued
		return nil
	})

	env.exec.Execute(ctx, job.ID)

	got, _ := env.store.Get(ctx, job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("Expected completed, got %s (%+v)", got.Status, got.Err)
	}

	r, err := env.backend.Read(ctx, storage.ResultKey(job.ID))
	if err != nil {
		t.Fatalf("Read published artifact: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "source" {
		t.Errorf("Re-run did not overwrite stale artifact: %q", data)
	}
}

func TestExecutor_TerminalJobIsNotRerun(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := env.createJob(t, domain.Parameters{})

	env.store.Update(context.Background(), job.ID, func(j *domain.Job) error {
		j.Complete("outputs/done.mp4", time.Now().UTC())
		return nil
	})

	env.exec.Execute(context.Background(), job.ID)

	if env.tc.downloads != 0 {
		t.Errorf("Terminal job was re-executed: %d downloads", env.tc.downloads)
	}
}

func TestExecutor_NotifierSeesTerminalSnapshot(t *testing.T) {
	env := newTestEnv(t, Options{})
	var last *domain.Job
	env.exec.notifier = notifierFunc(func(_ context.Context, j *domain.Job) { last = j })

	job := env.createJob(t, domain.Parameters{})
	env.exec.Execute(context.Background(), job.ID)

	if last == nil {
		t.Fatal("Notifier was never called")
	}
	if last.Status != domain.StatusCompleted {
		t.Errorf("Expected final notification to be completed, got %s", last.Status)
	}
}

type notifierFunc func(context.Context, *domain.Job)

func (f notifierFunc) Notify(ctx context.Context, j *domain.Job) { f(ctx, j) }
