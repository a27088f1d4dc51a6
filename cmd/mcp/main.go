package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/hybrid-memory/internal/adapters/mcp"
	"github.com/kirillkom/hybrid-memory/internal/bootstrap"
	"github.com/kirillkom/hybrid-memory/internal/config"
	"github.com/kirillkom/hybrid-memory/internal/observability/logging"
)

const serviceName = "memory-mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{
		Service: serviceName,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Writer:  os.Stderr,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Retriever, app.Context, logger)
	logger.Info("mcp_serving_stdio")
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
