package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"videoEditor/api/cache"
	"videoEditor/api/config"
	"videoEditor/api/database"
	"videoEditor/api/handlers"
	"videoEditor/api/kafka"
	"videoEditor/api/middleware"
	"videoEditor/api/repository"
	"videoEditor/api/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("api service starting", zap.String("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()
	repo := repository.NewPostgresRepo(pool)

	redisCache, err := database.ConnectCache(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer redisCache.Close()
	statusCache := cache.NewStatusCache(redisCache)

	producer, err := kafka.NewProducer([]string{cfg.KafkaBrokers})
	if err != nil {
		logger.Fatal("connect kafka", zap.Error(err))
	}
	defer producer.Close()

	jobService := service.NewJobService(repo, statusCache, producer, cfg.KafkaTopic, logger)
	jobHandler := handlers.NewJobHandler(jobService, logger)
	downloadHandler := handlers.NewDownloadHandler(cfg.LocalStoragePath, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/api/v1/process", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		jobHandler.Process(w, r)
	})
	mux.HandleFunc("/api/v1/status/", jobHandler.Status)
	mux.HandleFunc("/api/v1/result/", jobHandler.Result)
	mux.HandleFunc("/api/v1/job/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		jobHandler.Cancel(w, r)
	})
	mux.HandleFunc("/api/v1/download/", downloadHandler.Download)

	var handler http.Handler = mux
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.TraceID(handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server started", zap.String("address", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server exited", zap.Error(err))
	}
}
