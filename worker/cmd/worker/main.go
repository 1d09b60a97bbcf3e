package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"videoEditor/worker/cache"
	"videoEditor/worker/config"
	"videoEditor/worker/dispatch"
	"videoEditor/worker/domain"
	"videoEditor/worker/expire"
	"videoEditor/worker/jobstore"
	"videoEditor/worker/kafka"
	"videoEditor/worker/media"
	"videoEditor/worker/pipeline"
	"videoEditor/worker/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("worker service starting",
		zap.Int("max_concurrent_jobs", cfg.MaxConcurrentJobs),
		zap.String("storage_type", cfg.StorageType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()
	store := jobstore.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	statusCache := cache.NewStatusCache(redisClient, cfg.StatusCacheTTL, logger)

	backend, err := newBackend(cfg)
	if err != nil {
		logger.Fatal("configure storage backend", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.TempStoragePath, 0o755); err != nil {
		logger.Fatal("create temp dir", zap.Error(err))
	}

	toolchain := media.NewFFmpeg(media.FFmpegOptions{
		FFmpegBin:      cfg.FFmpegBin,
		FFprobeBin:     cfg.FFprobeBin,
		MaxSourceBytes: cfg.MaxSourceBytes,
		AllowedFormats: cfg.AllowedFormats,
	}, logger)

	presets := domain.NewPresetRegistry()

	executor := pipeline.New(store, toolchain, backend, presets, statusCache, pipeline.Options{
		ScratchDir:        cfg.TempStoragePath,
		StageTimeout:      cfg.StageTimeout,
		RetryMax:          cfg.RetryMax,
		PublishRetryBonus: 2,
		RetryBackoff:      cfg.RetryBackoff,
		ResultURLTTL:      cfg.ResultURLTTL,
	}, logger)

	dispatcher := dispatch.New(store, executor, dispatch.Options{
		Workers:       cfg.MaxConcurrentJobs,
		QueueCapacity: cfg.QueueCapacity,
	}, logger)
	dispatcher.Start(ctx)

	sweeper := expire.New(store, backend, statusCache, cfg.JobRetention, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	consumer, err := kafka.NewConsumer([]string{cfg.KafkaBrokers}, cfg.KafkaGroupID, logger)
	if err != nil {
		logger.Fatal("connect kafka", zap.Error(err))
	}
	defer consumer.Close()

	handler := func(ctx context.Context, msg *kafka.JobMessage) error {
		if err := dispatcher.Submit(msg.JobID); err != nil {
			logger.Warn("job submission rejected",
				zap.String("job_id", msg.JobID),
				zap.String("trace_id", msg.TraceID),
				zap.Error(err),
			)
			_, uerr := store.Update(ctx, msg.JobID, func(j *domain.Job) error {
				j.Fail(domain.NewError(domain.KindRejected, "job queue is full"), time.Now().UTC())
				return nil
			})
			return uerr
		}
		return nil
	}

	for ctx.Err() == nil {
		if err := consumer.Consume(ctx, cfg.KafkaTopic, handler); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("kafka consume", zap.Error(err))
		}
	}

	logger.Info("shutting down, draining workers")
	dispatcher.Wait()
}

func newBackend(cfg *config.Config) (storage.Backend, error) {
	if cfg.StorageType == "s3" {
		return storage.NewS3(storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return storage.NewLocal(cfg.LocalStoragePath, cfg.DownloadBaseURL)
}
