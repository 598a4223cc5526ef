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

	"github.com/ivmaltsev/corpus-engine/internal/bootstrap"
	"github.com/ivmaltsev/corpus-engine/internal/config"
	"github.com/ivmaltsev/corpus-engine/internal/observability/logging"
	"github.com/ivmaltsev/corpus-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("corpus-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("corpus-worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_serve_failed", "error", err)
		}
	}()

	jobTimeout := time.Duration(cfg.EmbedTimeoutSeconds) * time.Second
	handler := func(msgCtx context.Context, contentHash string, publishedAt time.Time) error {
		jobCtx, cancel := context.WithTimeout(msgCtx, jobTimeout)
		defer cancel()

		if !publishedAt.IsZero() {
			workerMetrics.ObserveQueueLag(time.Since(publishedAt))
		}
		workerMetrics.StartResource()
		start := time.Now()
		err := app.Processor.ProcessByHash(jobCtx, contentHash)
		workerMetrics.FinishResource(time.Since(start), err)
		return err
	}

	logger.Info("worker_started", "subject", cfg.NATSSubject)
	if err := app.Queue.SubscribeResourceRegistered(ctx, handler); err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	logger.Info("worker_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker_metrics_shutdown_failed", "error", err)
	}
}
