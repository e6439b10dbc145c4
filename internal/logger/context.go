package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext attaches a request-scoped logger to the context. The HTTP
// middleware uses this to carry per-request fields (request id) into
// downstream code.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or a no-op logger when the
// context carries none. Callers never need a nil check.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
