package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/storycli/storycli/internal/config"
)

// Setup configures the slog logger. The TUI owns stdout, so logs go
// to the configured file (or are discarded if it cannot be opened).
func Setup(cfg *config.Config) *slog.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = f
		} else {
			w = io.Discard
		}
	}

	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithError adds error context to a logger.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}
