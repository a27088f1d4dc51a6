package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Service string
	Level   string
	// Format is "json" (default) or "text".
	Format string
	// Writer defaults to stdout. Stdio protocol servers pass stderr.
	Writer io.Writer
}

// New builds the process logger. Every record carries the service name.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler).With("service", opts.Service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
