package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"videoEditor/api/models"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) Repository {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) CreateJob(ctx context.Context, job *models.Job) error {
	job.ID = uuid.New().String()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (id, video_url, customer_name, intro_clip, outro_clip,
			transition_style, watermark_asset, overlay_text, encoding_preset,
			status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, job.VideoURL, job.CustomerName, job.IntroClip, job.OutroClip,
		job.TransitionStyle, job.WatermarkAsset, job.OverlayText, job.EncodingPreset,
		string(job.Status), job.Message, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, video_url, customer_name, intro_clip, outro_clip,
			transition_style, watermark_asset, overlay_text, encoding_preset,
			status, progress, message, result_location, error_kind,
			error_message, cancel_requested, created_at, updated_at, completed_at
		FROM jobs
		WHERE id = $1`, id)

	var job models.Job
	var status string
	err := row.Scan(
		&job.ID, &job.VideoURL, &job.CustomerName, &job.IntroClip, &job.OutroClip,
		&job.TransitionStyle, &job.WatermarkAsset, &job.OverlayText, &job.EncodingPreset,
		&status, &job.Progress, &job.Message, &job.ResultLocation, &job.ErrorKind,
		&job.ErrorMessage, &job.CancelRequested, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	job.Status = models.JobStatus(status)
	return &job, nil
}

func (r *PostgresRepo) RequestCancel(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET cancel_requested = TRUE, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed', 'expired')`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetJob(ctx, id); err != nil {
			return err
		}
		// Already terminal; cancellation is a no-op.
	}
	return nil
}
