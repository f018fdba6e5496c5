// Package obslog wraps log/slog with the component/operation/path field
// convention used throughout accessio, matching the teacher's
// slog.Default().With("component", ...) pattern in internal/storage/s3,
// generalized from one backend's ad hoc With() calls into a shared
// constructor used by the network backends (s3, gcs, azblob, http,
// webhdfs, sftp).
package obslog

import (
	"context"
	"log/slog"
	"os"
)

// New returns a logger scoped to component, reading its level and
// format from the ambient Configuration (internal/config) at call site —
// callers pass the already-resolved slog.Level so this package stays
// free of a config import cycle.
func New(component string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("component", component)
}

// ForOperation scopes logger with the operation/path fields every
// accessor and layer method logs against.
func ForOperation(logger *slog.Logger, scheme, operation, path string) *slog.Logger {
	return logger.With("scheme", scheme, "operation", operation, "path", path)
}

// Discard returns a logger that drops everything; FromContext falls back
// to it when no logger has been wired into the context.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type loggerKey struct{}

// WithContext attaches logger to ctx so a deeply nested call (a
// completion adapter, a retry notifier) can log without threading a
// *slog.Logger through every function signature.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached by WithContext, or a discard
// logger if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return Discard()
}

// ParseLevel maps the ambient Configuration's string log levels
// ("DEBUG"/"INFO"/"WARN"/"ERROR") to a slog.Level, matching the set
// internal/config.Configuration.Validate already accepts.
func ParseLevel(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
