// Package ctxlog carries the request-scoped logger through context. The
// request middleware seeds it with the request id; handlers and services
// retrieve it so every log line of one request shares the same id.
package ctxlog

import (
	"context"
	"log/slog"
)

type requestLoggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey{}, logger)
}

// FromContext returns the request-scoped logger, or slog.Default() outside
// a request.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(requestLoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
