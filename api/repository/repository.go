package repository

import (
	"context"
	"errors"

	"videoEditor/api/models"
)

var ErrJobNotFound = errors.New("job not found")

type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	// RequestCancel flips the advisory cancellation flag; the worker stops
	// the pipeline at its next stage boundary.
	RequestCancel(ctx context.Context, id string) error
}
