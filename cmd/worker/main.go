package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tienda-erp/tienda-erp/internal/app"
	"github.com/tienda-erp/tienda-erp/internal/platform/cache"
	"github.com/tienda-erp/tienda-erp/internal/platform/db"
	"github.com/tienda-erp/tienda-erp/internal/reporting"
	"github.com/tienda-erp/tienda-erp/internal/sequence"
	"github.com/tienda-erp/tienda-erp/internal/shared"
	"github.com/tienda-erp/tienda-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	reports := cache.NewReportCache(redisClient, cfg.ReportCacheTTL)

	allocator := sequence.NewAllocator(sequence.NewRepository(pool), logger)
	reportService := reporting.NewService(reporting.NewRepository(pool), cfg.VATPercent, logger)

	integrityJob := jobs.NewCounterIntegrityJob(pool, allocator, logger)
	warmupJob := jobs.NewCreditWarmupJob(reportService, reports, logger)
	cleanupJob := jobs.NewKeyCleanupJob(shared.NewIdempotencyStore(pool), logger)

	warmupTask, err := jobs.NewCreditWarmupTask(30)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCounterIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskCreditWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskKeyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: jobs.NewCounterIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 2 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * 0", Task: jobs.NewKeyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
