package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"videoEditor/worker/domain"
	"videoEditor/worker/jobstore"
	"videoEditor/worker/media"
	"videoEditor/worker/storage"
)

// Notifier receives a job snapshot after every status write so interested
// parties (status cache, pub/sub) can fan it out. Implementations must not
// block the pipeline.
type Notifier interface {
	Notify(ctx context.Context, job *domain.Job)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *domain.Job) {}

type Options struct {
	// ScratchDir is the local directory for per-job intermediate files.
	ScratchDir string
	// StageTimeout is the wall-clock budget for each stage.
	StageTimeout time.Duration
	// RetryMax bounds whole-job re-runs after a failure. Storage failures
	// during Publish get PublishRetryBonus extra attempts, since the
	// processing work is already sunk by then.
	RetryMax          int
	PublishRetryBonus int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
	// ResultURLTTL is the lifetime requested for signed result URLs.
	ResultURLTTL time.Duration
	// WatermarkMaxWidth caps the watermark raster before overlay.
	WatermarkMaxWidth int
}

// Executor runs the Acquire, Compose, Encode, Publish stages for one job,
// strictly in order, translating each outcome into job record updates. All
// writes go through the store's atomic update; no job state is held privately
// across a toolchain or network wait.
type Executor struct {
	store    jobstore.Store
	tc       media.Toolchain
	backend  storage.Backend
	presets  *domain.PresetRegistry
	notifier Notifier
	logger   *zap.Logger
	opts     Options
}

func New(store jobstore.Store, tc media.Toolchain, backend storage.Backend,
	presets *domain.PresetRegistry, notifier Notifier, opts Options, logger *zap.Logger) *Executor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 10 * time.Minute
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Minute
	}
	if opts.WatermarkMaxWidth <= 0 {
		opts.WatermarkMaxWidth = 320
	}
	return &Executor{
		store:    store,
		tc:       tc,
		backend:  backend,
		presets:  presets,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

func (e *Executor) Execute(ctx context.Context, jobID string) {
	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		e.logger.Error("load job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if job.Status.Terminal() {
		return
	}

	scratch := filepath.Join(e.opts.ScratchDir, jobID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		e.fail(ctx, jobID, domain.NewError(domain.KindStorage, "create scratch dir: %v", err))
		return
	}
	// Scratch artifacts never outlive the run, whether it completes, fails,
	// or is requeued for retry.
	defer os.RemoveAll(scratch)

	result, runErr := e.runStages(ctx, job.Params, jobID, scratch)
	if runErr != nil {
		e.handleFailure(ctx, jobID, runErr)
		return
	}
	e.complete(ctx, jobID, result)
}

func (e *Executor) runStages(ctx context.Context, params domain.Parameters, jobID, scratch string) (string, error) {
	// Acquire.
	if err := e.enterStage(ctx, jobID, domain.StatusDownloading, 0.0, "downloading source video"); err != nil {
		return "", err
	}
	sourcePath := filepath.Join(scratch, "input.mp4")
	err := e.withStageTimeout(ctx, "acquire", func(sctx context.Context) error {
		if err := e.tc.Download(sctx, params.VideoURL, sourcePath); err != nil {
			return err
		}
		info, err := e.tc.Probe(sctx, sourcePath)
		if err != nil {
			return err
		}
		e.logger.Info("source acquired",
			zap.String("job_id", jobID),
			zap.String("format", info.Format),
			zap.Int64("bytes", info.SizeBytes),
			zap.Float64("duration_s", info.Duration),
		)
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := e.progress(ctx, jobID, 0.25, "source downloaded"); err != nil {
		return "", err
	}

	// Compose.
	if err := e.enterStage(ctx, jobID, domain.StatusComposing, 0.25, "composing video segments"); err != nil {
		return "", err
	}
	current := sourcePath
	err = e.withStageTimeout(ctx, "compose", func(sctx context.Context) error {
		composed, err := e.compose(sctx, params, jobID, scratch, sourcePath)
		if err != nil {
			return err
		}
		current = composed
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := e.progress(ctx, jobID, 0.60, "composition finished"); err != nil {
		return "", err
	}

	// Encode. The preset is resolved here, not earlier, so definitions can
	// be reloaded while jobs of other presets are in flight.
	if err := e.enterStage(ctx, jobID, domain.StatusEncoding, 0.60, "encoding final video"); err != nil {
		return "", err
	}
	preset, err := e.presets.Resolve(params.EncodingPreset)
	if err != nil {
		return "", err
	}
	encodedPath := filepath.Join(scratch, "final.mp4")
	err = e.withStageTimeout(ctx, "encode", func(sctx context.Context) error {
		return e.tc.Encode(sctx, current, encodedPath, preset)
	})
	if err != nil {
		return "", err
	}
	if err := e.progress(ctx, jobID, 0.90, "encoding finished"); err != nil {
		return "", err
	}

	// Publish.
	if err := e.enterStage(ctx, jobID, domain.StatusPublishing, 0.90, "publishing result"); err != nil {
		return "", err
	}
	var resultURL string
	err = e.withStageTimeout(ctx, "publish", func(sctx context.Context) error {
		f, err := os.Open(encodedPath)
		if err != nil {
			return domain.NewError(domain.KindStorage, "open encoded artifact: %v", err)
		}
		defer f.Close()

		ref, err := e.backend.Write(sctx, storage.ResultKey(jobID), f)
		if err != nil {
			return err
		}
		url, err := e.backend.ResolveURL(sctx, ref, e.opts.ResultURLTTL)
		if err != nil {
			return err
		}
		resultURL = url
		return nil
	})
	if err != nil {
		return "", err
	}
	return resultURL, nil
}

func (e *Executor) compose(ctx context.Context, params domain.Parameters, jobID, scratch, sourcePath string) (string, error) {
	segments := make([]string, 0, 3)

	if params.IntroClip != "" {
		introPath := filepath.Join(scratch, "intro.mp4")
		if err := e.fetchAsset(ctx, storage.IntroKey(params.IntroClip), introPath, "intro clip"); err != nil {
			return "", err
		}
		segments = append(segments, introPath)
	}
	segments = append(segments, sourcePath)
	if params.OutroClip != "" {
		outroPath := filepath.Join(scratch, "outro.mp4")
		if err := e.fetchAsset(ctx, storage.OutroKey(params.OutroClip), outroPath, "outro clip"); err != nil {
			return "", err
		}
		segments = append(segments, outroPath)
	}

	current := sourcePath
	if len(segments) > 1 {
		composedPath := filepath.Join(scratch, "composed.mp4")
		if err := e.tc.Concat(ctx, segments, params.TransitionStyle, composedPath); err != nil {
			return "", err
		}
		current = composedPath
	}

	overlayText := ""
	if params.OverlayText {
		overlayText = params.CustomerName
	}
	watermarkPath := ""
	if params.WatermarkAsset != "" {
		rawPath := filepath.Join(scratch, "logo_src")
		if err := e.fetchAsset(ctx, storage.LogoKey(params.WatermarkAsset), rawPath, "watermark"); err != nil {
			return "", err
		}
		watermarkPath = filepath.Join(scratch, "watermark.png")
		if err := media.PrepareWatermark(rawPath, watermarkPath, e.opts.WatermarkMaxWidth); err != nil {
			return "", err
		}
	}
	if overlayText != "" || watermarkPath != "" {
		overlaidPath := filepath.Join(scratch, "overlaid.mp4")
		if err := e.tc.Overlay(ctx, current, overlaidPath, overlayText, watermarkPath); err != nil {
			return "", err
		}
		current = overlaidPath
	}
	return current, nil
}

// fetchAsset copies an asset out of the storage backend into scratch. A
// missing asset is a compose failure; backend unavailability keeps its
// storage kind so the retry policy can tell them apart.
func (e *Executor) fetchAsset(ctx context.Context, key, destPath, what string) error {
	r, err := e.backend.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.NewError(domain.KindComposeFailed, "%s %s not found", what, key)
		}
		return err
	}
	defer r.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return domain.NewError(domain.KindStorage, "stage %s: %v", what, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return domain.NewError(domain.KindStorage, "stage %s: %v", what, err)
	}
	return nil
}

// withStageTimeout enforces the per-stage wall-clock budget. A stage that
// overruns is reported as a timeout regardless of the toolchain's own error.
func (e *Executor) withStageTimeout(ctx context.Context, stage string, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, e.opts.StageTimeout)
	defer cancel()

	err := fn(sctx)
	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, "%s stage exceeded %s budget", stage, e.opts.StageTimeout)
	}
	if err != nil {
		return fmt.Errorf("%s stage: %w", stage, err)
	}
	return nil
}

// enterStage is the stage boundary: the advisory cancellation flag is checked
// here, and the status/progress/message are advanced atomically.
func (e *Executor) enterStage(ctx context.Context, jobID string, status domain.Status, p float64, message string) error {
	snap, err := e.store.Update(ctx, jobID, func(j *domain.Job) error {
		if j.CancelRequested {
			return domain.NewError(domain.KindCancelled, "cancellation requested")
		}
		if err := j.Transition(status); err != nil {
			return err
		}
		j.SetProgress(p, message)
		return nil
	})
	if err != nil {
		return err
	}
	e.notifier.Notify(ctx, snap)
	return nil
}

func (e *Executor) progress(ctx context.Context, jobID string, p float64, message string) error {
	snap, err := e.store.Update(ctx, jobID, func(j *domain.Job) error {
		j.SetProgress(p, message)
		return nil
	})
	if err != nil {
		return err
	}
	e.notifier.Notify(ctx, snap)
	return nil
}

func (e *Executor) complete(ctx context.Context, jobID, resultLocation string) {
	snap, err := e.store.Update(ctx, jobID, func(j *domain.Job) error {
		j.Complete(resultLocation, time.Now().UTC())
		return nil
	})
	if err != nil {
		e.logger.Error("record completion", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	e.notifier.Notify(ctx, snap)
	e.logger.Info("job completed",
		zap.String("job_id", jobID),
		zap.String("result", resultLocation),
	)
}

// handleFailure decides between scheduling a whole-job retry and settling the
// terminal failure. The backoff is recorded on the record; the worker slot is
// released immediately either way.
func (e *Executor) handleFailure(ctx context.Context, jobID string, runErr error) {
	jobErr := domain.AsError(runErr, domain.KindStorage)
	now := time.Now().UTC()

	snap, err := e.store.Update(ctx, jobID, func(j *domain.Job) error {
		if j.Status.Terminal() {
			return nil
		}
		j.Attempts++

		budget := e.opts.RetryMax
		if jobErr.Kind == domain.KindStorage && j.Status == domain.StatusPublishing {
			budget += e.opts.PublishRetryBonus
		}
		retryable := jobErr.Kind != domain.KindValidation && jobErr.Kind != domain.KindCancelled

		if retryable && j.Attempts <= budget {
			delay := e.opts.RetryBackoff << (j.Attempts - 1)
			j.Status = domain.StatusQueued
			j.Message = fmt.Sprintf("attempt %d failed, retry scheduled", j.Attempts)
			j.NextAttemptAt = now.Add(delay)
			return nil
		}
		j.Fail(jobErr, now)
		return nil
	})
	if err != nil {
		e.logger.Error("record failure", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	e.notifier.Notify(ctx, snap)
	e.logger.Warn("job run failed",
		zap.String("job_id", jobID),
		zap.String("kind", string(jobErr.Kind)),
		zap.String("status", string(snap.Status)),
		zap.Error(runErr),
	)
}

func (e *Executor) fail(ctx context.Context, jobID string, jobErr *domain.Error) {
	snap, err := e.store.Update(ctx, jobID, func(j *domain.Job) error {
		j.Fail(jobErr, time.Now().UTC())
		return nil
	})
	if err != nil {
		e.logger.Error("record failure", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	e.notifier.Notify(ctx, snap)
}
