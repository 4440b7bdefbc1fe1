package shapespace

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is a slog.Logger that knows the field names used across a run:
// run_id, metric, dimension, samples and elapsed.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger logs human-readable lines to w.
func NewTextLogger(w io.Writer, level slog.Leveler) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger logs one JSON object per record to w.
func NewJSONLogger(w io.Writer, level slog.Leveler) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithRunID tags every record with the run id.
func (l *Logger) WithRunID(id string) *Logger { return l.with("run_id", id) }

// WithMetric tags records with the distance metric being computed.
func (l *Logger) WithMetric(metric string) *Logger { return l.with("metric", metric) }

// WithDimension tags records with the payload length D.
func (l *Logger) WithDimension(dim int) *Logger { return l.with("dimension", dim) }

// outcome logs msg at info on success and failed at error level otherwise.
func (l *Logger) outcome(ctx context.Context, err error, msg, failed string, args ...any) {
	if err != nil {
		l.ErrorContext(ctx, failed, append(args, "error", err)...)
		return
	}
	l.InfoContext(ctx, msg, args...)
}

// LogDistance logs one distance matrix.
func (l *Logger) LogDistance(ctx context.Context, metric string, samples int, elapsed time.Duration, err error) {
	l.outcome(ctx, err, "distance matrix computed", "distance computation failed",
		"metric", metric, "samples", samples, "elapsed", elapsed)
}

// LogModels logs a model build. Degenerate crystals raise the level to warn.
func (l *Logger) LogModels(ctx context.Context, models, degenerate int, elapsed time.Duration, err error) {
	if err == nil && degenerate > 0 {
		l.WarnContext(ctx, "models built with degenerate crystals",
			"models", models, "degenerate", degenerate, "elapsed", elapsed)
		return
	}
	l.outcome(ctx, err, "models built", "model build failed", "models", models, "elapsed", elapsed)
}

// LogPublish logs the move of staged outputs into dir.
func (l *Logger) LogPublish(ctx context.Context, dir string, files int, err error) {
	l.outcome(ctx, err, "outputs published", "publish failed", "dir", dir, "files", files)
}

// LogExport logs mirroring of published outputs below prefix.
func (l *Logger) LogExport(ctx context.Context, prefix string, files int, err error) {
	l.outcome(ctx, err, "outputs exported", "export failed", "prefix", prefix, "files", files)
}
