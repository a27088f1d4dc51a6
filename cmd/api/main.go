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

	httpadapter "github.com/kirillkom/hybrid-memory/internal/adapters/http"
	"github.com/kirillkom/hybrid-memory/internal/bootstrap"
	"github.com/kirillkom/hybrid-memory/internal/config"
	"github.com/kirillkom/hybrid-memory/internal/observability/logging"
	"github.com/kirillkom/hybrid-memory/internal/observability/metrics"
)

const serviceName = "memory-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{Service: serviceName, Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Observer: metrics.NewRetrievalMetrics(serviceName, httpMetrics.Registerer()),
		Upstream: metrics.NewUpstreamMetrics(serviceName, httpMetrics.Registerer()),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Retriever, app.Context, app.Ingest, app.Rooms).
		WithMetrics(httpMetrics).
		WithLogger(logger).
		Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening",
			"port", cfg.APIPort,
			"store", cfg.StoreBackend,
			"vector", cfg.VectorBackend,
			"lexical", cfg.LexicalBackend,
			"rooms", cfg.RoomBackend,
			"queue", cfg.QueueBackend,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
