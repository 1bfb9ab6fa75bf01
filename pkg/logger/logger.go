// Package logger builds the structured slog loggers shared by the AgriSmart
// commands and carries request-scoped loggers through a context.Context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the configuration for the logger.
type Config struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	Level  slog.Level
	// AddSource adds the caller's file and line to each record.
	AddSource bool
	// Text switches from JSON to the logfmt-style text handler.
	Text bool
	// Service, when set, is attached to every record as "service".
	Service string
}

// New creates a logger from cfg. A nil cfg gives an info-level JSON logger
// on stdout.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = &Config{Level: slog.LevelInfo}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler = slog.NewJSONHandler(out, opts)
	if cfg.Text {
		handler = slog.NewTextHandler(out, opts)
	}

	log := slog.New(handler)
	if cfg.Service != "" {
		log = log.With(slog.String("service", cfg.Service))
	}
	return log
}

// ParseLevel maps debug, info, warn (or warning) and error to a slog.Level,
// ignoring case and surrounding space. Anything else is info.
func ParseLevel(level string) slog.Level {
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

type ctxKey struct{}

// IntoContext stores l in ctx so downstream code can pick up request fields.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or fallback when none is set.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return slog.Default()
	}
	return fallback
}
