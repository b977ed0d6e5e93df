package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/tienda-erp/tienda-erp/internal/app"
	"github.com/tienda-erp/tienda-erp/internal/document"
	"github.com/tienda-erp/tienda-erp/internal/ledger"
	"github.com/tienda-erp/tienda-erp/internal/masterdata"
	"github.com/tienda-erp/tienda-erp/internal/observability"
	"github.com/tienda-erp/tienda-erp/internal/platform/cache"
	"github.com/tienda-erp/tienda-erp/internal/platform/db"
	"github.com/tienda-erp/tienda-erp/internal/reporting"
	"github.com/tienda-erp/tienda-erp/internal/sequence"
	"github.com/tienda-erp/tienda-erp/internal/shared"
	"github.com/tienda-erp/tienda-erp/internal/tax"
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
	master := masterdata.NewRepository(pool)
	taxEngine := tax.NewEngine(master)
	audit := shared.NewAuditLogger(pool)
	keys := shared.NewIdempotencyStore(pool)

	stockWriter := ledger.NewWriter(ledger.NewRepository(pool), allocator, logger)

	docRepo := document.NewRepository(pool)
	lifecycle := document.NewLifecycle(docRepo, master, taxEngine, allocator, stockWriter, keys, logger)
	docService := document.NewService(docRepo, master, taxEngine, allocator, lifecycle, master, audit, reports, logger)

	reportService := reporting.NewService(reporting.NewRepository(pool), cfg.VATPercent, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobInspector := asynq.NewInspector(redisOpts)

	validate := validator.New()
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DocumentHandler:  document.NewHandler(logger, docService, lifecycle, validate),
		LedgerHandler:    ledger.NewHandler(logger, stockWriter, validate),
		ReportingHandler: reporting.NewHandler(logger, reportService, reports),
		JobHandler:       jobs.NewHandler(jobClient, jobInspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
