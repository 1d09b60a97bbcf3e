package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"videoEditor/api/cache"
	"videoEditor/api/dto"
	"videoEditor/api/kafka"
	"videoEditor/api/models"
	"videoEditor/api/repository"
	"videoEditor/api/validation"
)

type JobService struct {
	repo     repository.Repository
	cache    *cache.StatusCache
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewJobService(repo repository.Repository, cache *cache.StatusCache, producer kafka.Producer, topic string, logger *zap.Logger) *JobService {
	return &JobService{
		repo:     repo,
		cache:    cache,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// CreateJob validates the request, persists the record in queued state and
// hands the job id to the processing queue. Validation failures reject the
// request before any record exists.
func (s *JobService) CreateJob(ctx context.Context, traceID string, req *dto.ProcessRequest) (*dto.ProcessResponse, error) {
	if err := validation.ValidateProcessRequest(req); err != nil {
		return nil, err
	}

	job := &models.Job{
		VideoURL:        req.VideoURL,
		CustomerName:    req.CustomerName,
		IntroClip:       req.IntroClip,
		OutroClip:       req.OutroClip,
		TransitionStyle: req.TransitionStyle,
		WatermarkAsset:  req.WatermarkAsset,
		OverlayText:     req.OverlayText,
		EncodingPreset:  req.EncodingPreset,
		Status:          models.StatusQueued,
		Message:         "job queued for processing",
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, &dto.StatusResponse{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: 0,
		Message:  job.Message,
	}); err != nil {
		s.logger.Warn("seed status cache", zap.String("job_id", job.ID), zap.Error(err))
	}

	msg := &kafka.JobMessage{JobID: job.ID, TraceID: traceID}
	if err := s.producer.SendJobMessage(ctx, s.topic, msg); err != nil {
		return nil, err
	}

	return &dto.ProcessResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: "video processing job started",
	}, nil
}

// GetStatus serves the polling path, cache first with a store fallback.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*dto.StatusResponse, error) {
	resp, err := s.cache.Get(ctx, jobID)
	if err == nil {
		return resp, nil
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, dto.ErrJobNotFound
		}
		return nil, err
	}

	resp = statusFromJob(job)
	if err := s.cache.Set(ctx, resp); err != nil {
		s.logger.Warn("refill status cache", zap.String("job_id", jobID), zap.Error(err))
	}
	return resp, nil
}

func (s *JobService) GetResult(ctx context.Context, jobID string) (*dto.ResultResponse, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, dto.ErrJobNotFound
		}
		return nil, err
	}
	if job.Status != models.StatusCompleted {
		return nil, dto.ErrJobNotCompleted
	}

	resp := &dto.ResultResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		DownloadURL: job.ResultLocation,
	}
	if job.CompletedAt != nil {
		formatted := job.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &formatted
	}
	return resp, nil
}

func (s *JobService) Cancel(ctx context.Context, jobID string) error {
	err := s.repo.RequestCancel(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		return dto.ErrJobNotFound
	}
	return err
}

func statusFromJob(job *models.Job) *dto.StatusResponse {
	resp := &dto.StatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Message:   job.Message,
		ResultURL: job.ResultLocation,
		ErrorKind: job.ErrorKind,
		Error:     job.ErrorMessage,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		formatted := job.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &formatted
	}
	return resp
}
