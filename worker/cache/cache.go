package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"videoEditor/worker/domain"
)

const (
	jobKeyPrefix     = "job:"
	progressChPrefix = "job.progress."
)

// StatusCache mirrors job snapshots into Redis for the API's polling path and
// publishes each update on a per-job channel for subscribers. Both writes are
// best-effort: a cache miss falls back to the durable store, so a Redis
// hiccup never fails a pipeline.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatusCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StatusCache {
	return &StatusCache{client: client, ttl: ttl, logger: logger}
}

// Notify implements pipeline.Notifier.
func (c *StatusCache) Notify(ctx context.Context, job *domain.Job) {
	key := jobKeyPrefix + job.ID

	fields := map[string]interface{}{
		"status":   string(job.Status),
		"progress": strconv.FormatFloat(job.Progress, 'f', -1, 64),
		"message":  job.Message,
	}
	if job.ResultLocation != "" {
		fields["result_url"] = job.ResultLocation
	}
	if job.Err != nil {
		fields["error_kind"] = string(job.Err.Kind)
		fields["error"] = job.Err.Message
	}
	if job.CompletedAt != nil {
		fields["completed_at"] = job.CompletedAt.UTC().Format(time.RFC3339)
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("status cache write failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := c.client.Publish(ctx, progressChPrefix+job.ID, payload).Err(); err != nil {
		c.logger.Warn("progress publish failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

// Forget drops the cached snapshot, used when a record is expired away.
func (c *StatusCache) Forget(ctx context.Context, jobID string) {
	if err := c.client.Del(ctx, jobKeyPrefix+jobID).Err(); err != nil {
		c.logger.Warn("status cache delete failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}
