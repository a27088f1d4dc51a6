package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kirillkom/hybrid-memory/internal/bootstrap"
	"github.com/kirillkom/hybrid-memory/internal/config"
	"github.com/kirillkom/hybrid-memory/internal/observability/logging"
)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return services{}, nil, err
	}
	logger := logging.New(logging.Options{Service: "memctl", Level: cfg.LogLevel, Format: "text", Writer: os.Stderr})

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		return services{}, nil, err
	}
	return services{
		retriever: app.Retriever,
		assembler: app.Context,
		ingestor:  app.Ingest,
		rooms:     app.Rooms,
	}, app.Close, nil
}
