package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"videoEditor/worker/domain"
)

// Schema is the jobs table expected by Postgres. Applied by the migration
// step in deployment, embedded here so the layout lives next to the queries.
const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id               UUID PRIMARY KEY,
    video_url        TEXT NOT NULL,
    customer_name    TEXT NOT NULL,
    intro_clip       TEXT NOT NULL DEFAULT '',
    outro_clip       TEXT NOT NULL DEFAULT '',
    transition_style TEXT NOT NULL,
    watermark_asset  TEXT NOT NULL DEFAULT '',
    overlay_text     BOOLEAN NOT NULL DEFAULT FALSE,
    encoding_preset  TEXT NOT NULL,
    status           TEXT NOT NULL,
    progress         DOUBLE PRECISION NOT NULL DEFAULT 0,
    message          TEXT NOT NULL DEFAULT '',
    result_location  TEXT NOT NULL DEFAULT '',
    error_kind       TEXT NOT NULL DEFAULT '',
    error_message    TEXT NOT NULL DEFAULT '',
    attempts         INT NOT NULL DEFAULT 0,
    next_attempt_at  TIMESTAMPTZ,
    cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at     TIMESTAMPTZ
);
`

const jobColumns = `id, video_url, customer_name, intro_clip, outro_clip, transition_style,
	watermark_asset, overlay_text, encoding_preset, status, progress, message,
	result_location, error_kind, error_message, attempts, next_attempt_at,
	cancel_requested, created_at, updated_at, completed_at`

// Postgres is the durable store. Per-job mutual exclusion for Update comes
// from a row lock (SELECT ... FOR UPDATE) inside one transaction, so updates
// to different jobs proceed on independent rows.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Create(ctx context.Context, params domain.Parameters) (*domain.Job, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Params:    params,
		Status:    domain.StatusQueued,
		Message:   "job queued for processing",
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO jobs (id, video_url, customer_name, intro_clip, outro_clip,
			transition_style, watermark_asset, overlay_text, encoding_preset,
			status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, params.VideoURL, params.CustomerName, params.IntroClip, params.OutroClip,
		string(params.TransitionStyle), params.WatermarkAsset, params.OverlayText, params.EncodingPreset,
		string(job.Status), job.Message, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

func (p *Postgres) Update(ctx context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("lock job: %w", err)
	}

	if err := fn(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now().UTC()

	var errKind, errMessage string
	if job.Err != nil {
		errKind = string(job.Err.Kind)
		errMessage = job.Err.Message
	}
	var nextAttempt *time.Time
	if !job.NextAttemptAt.IsZero() {
		nextAttempt = &job.NextAttemptAt
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET status = $2, progress = $3, message = $4, result_location = $5,
			error_kind = $6, error_message = $7, attempts = $8,
			next_attempt_at = $9, cancel_requested = $10, updated_at = $11,
			completed_at = $12
		WHERE id = $1`,
		job.ID, string(job.Status), job.Progress, job.Message, job.ResultLocation,
		errKind, errMessage, job.Attempts, nextAttempt, job.CancelRequested,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return job, nil
}

func (p *Postgres) ListExpired(ctx context.Context, now time.Time, retention time.Duration) ([]string, error) {
	return p.listIDs(ctx, `
		SELECT id FROM jobs
		WHERE status IN ('completed', 'failed', 'expired') AND created_at < $1`,
		now.Add(-retention))
}

func (p *Postgres) ListRequeueable(ctx context.Context, now time.Time) ([]string, error) {
	return p.listIDs(ctx, `
		SELECT id FROM jobs
		WHERE status = 'queued' AND next_attempt_at IS NOT NULL AND next_attempt_at <= $1`,
		now)
}

func (p *Postgres) ListUnfinished(ctx context.Context) ([]string, error) {
	return p.listIDs(ctx, `
		SELECT id FROM jobs
		WHERE status NOT IN ('queued', 'completed', 'failed', 'expired')`)
}

func (p *Postgres) listIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE id = $1 AND status IN ('completed', 'failed', 'expired')`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.Get(ctx, id); err != nil {
			return err
		}
		return ErrJobActive
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job         domain.Job
		style       string
		status      string
		errKind     string
		errMessage  string
		nextAttempt *time.Time
	)
	err := row.Scan(
		&job.ID, &job.Params.VideoURL, &job.Params.CustomerName,
		&job.Params.IntroClip, &job.Params.OutroClip, &style,
		&job.Params.WatermarkAsset, &job.Params.OverlayText, &job.Params.EncodingPreset,
		&status, &job.Progress, &job.Message,
		&job.ResultLocation, &errKind, &errMessage, &job.Attempts, &nextAttempt,
		&job.CancelRequested, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Params.TransitionStyle = domain.TransitionStyle(style)
	job.Status = domain.Status(status)
	if errKind != "" {
		job.Err = &domain.Error{Kind: domain.ErrorKind(errKind), Message: errMessage}
	}
	if nextAttempt != nil {
		job.NextAttemptAt = *nextAttempt
	}
	return &job, nil
}
