// Package observability provides structured logging with context-based
// request tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LogFormat selects the log encoding.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is the minimum severity that gets written.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource includes file:line in each record.
	AddSource bool
	// ServiceName and ServiceVersion are stamped on every record.
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig is the development setup: readable text on stderr.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "nagi",
		ServiceVersion: "dev",
	}
}

// ProductionLogConfig is the hosted setup: JSON on stdout with source
// locations.
func ProductionLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatJSON,
		Output:         os.Stdout,
		AddSource:      true,
		ServiceName:    "nagi",
		ServiceVersion: "unknown",
	}
}

// NewLogger builds an slog.Logger whose handler also emits the
// correlation and request IDs found in the record's context.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     slogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	var serviceAttrs []slog.Attr
	if cfg.ServiceName != "" {
		serviceAttrs = append(serviceAttrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		serviceAttrs = append(serviceAttrs, slog.String("version", cfg.ServiceVersion))
	}

	return slog.New(&tracingHandler{handler: handler, attrs: serviceAttrs})
}

// LoggerFromEnv builds a logger from environment variables:
// NAGI_ENV=production selects the production config, NAGI_LOG_LEVEL
// and NAGI_LOG_FORMAT override level and encoding, NAGI_VERSION sets
// the version attribute.
func LoggerFromEnv() *slog.Logger {
	cfg := DefaultLogConfig()
	if os.Getenv("NAGI_ENV") == "production" {
		cfg = ProductionLogConfig()
	}

	if level := os.Getenv("NAGI_LOG_LEVEL"); level != "" {
		cfg.Level = LogLevel(level)
	}
	if format := os.Getenv("NAGI_LOG_FORMAT"); format != "" {
		cfg.Format = LogFormat(format)
	}
	if version := os.Getenv("NAGI_VERSION"); version != "" {
		cfg.ServiceVersion = version
	}

	return NewLogger(cfg)
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// tracingHandler decorates records with service attributes and any
// tracing IDs carried by the context.
type tracingHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
}

func (h *tracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *tracingHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)

	if corrID := CorrelationIDFromContext(ctx); corrID != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, corrID))
	}
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		r.AddAttrs(slog.String(RequestIDKey, reqID))
	}

	return h.handler.Handle(ctx, r)
}

func (h *tracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tracingHandler{handler: h.handler.WithAttrs(attrs), attrs: h.attrs}
}

func (h *tracingHandler) WithGroup(name string) slog.Handler {
	return &tracingHandler{handler: h.handler.WithGroup(name), attrs: h.attrs}
}
