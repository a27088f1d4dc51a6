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

	"github.com/kirillkom/hybrid-memory/internal/bootstrap"
	"github.com/kirillkom/hybrid-memory/internal/config"
	"github.com/kirillkom/hybrid-memory/internal/observability/logging"
	"github.com/kirillkom/hybrid-memory/internal/observability/metrics"
)

const serviceName = "memory-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{Service: serviceName, Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	if cfg.QueueBackend == "inline" {
		logger.Error("worker_requires_broker", "queue_backend", cfg.QueueBackend)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Upstream: metrics.NewUpstreamMetrics(serviceName, workerMetrics.Registerer()),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeMessageCreated(ctx, func(handlerCtx context.Context, messageID string) error {
		indexCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		started := time.Now()
		workerMetrics.StartMessage()
		err := app.Indexer.IndexByID(indexCtx, messageID)
		workerMetrics.FinishMessage(serviceName, time.Since(started), err)
		if err == nil {
			logger.Info("message_indexed", "message_id", messageID, "duration_ms", time.Since(started).Milliseconds())
		}
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
