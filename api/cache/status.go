package cache

import (
	"context"
	"strconv"
	"time"

	"videoEditor/api/database"
	"videoEditor/api/dto"
)

const (
	jobKeyPrefix = "job:"
	statusTTL    = 10 * time.Minute
)

// StatusCache reads the job snapshot hash the worker maintains in Redis, so
// status polling normally never touches Postgres. Keys and fields match the
// worker's cache package.
type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) Get(ctx context.Context, jobID string) (*dto.StatusResponse, error) {
	fields, err := sc.cache.HGetAll(ctx, jobKeyPrefix+jobID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, dto.ErrJobNotFound
	}

	resp := &dto.StatusResponse{
		JobID:     jobID,
		Status:    fields["status"],
		Message:   fields["message"],
		ResultURL: fields["result_url"],
		ErrorKind: fields["error_kind"],
		Error:     fields["error"],
	}
	if p, err := strconv.ParseFloat(fields["progress"], 64); err == nil {
		resp.Progress = p
	}
	if v := fields["completed_at"]; v != "" {
		resp.CompletedAt = &v
	}
	return resp, nil
}

// Set seeds the snapshot after job creation so the first poll hits the cache
// even before the worker picks the job up.
func (sc *StatusCache) Set(ctx context.Context, resp *dto.StatusResponse) error {
	fields := map[string]interface{}{
		"status":   resp.Status,
		"progress": strconv.FormatFloat(resp.Progress, 'f', -1, 64),
		"message":  resp.Message,
	}
	return sc.cache.HSet(ctx, jobKeyPrefix+resp.JobID, fields, statusTTL)
}

func (sc *StatusCache) Delete(ctx context.Context, jobID string) error {
	return sc.cache.Del(ctx, jobKeyPrefix+jobID)
}
