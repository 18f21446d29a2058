// Package logger carries a zap logger in a context.
package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying log.
func NewContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// L returns the logger stored in ctx, falling back to zap.L().
func L(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(contextKey{}).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.L()
}

// With derives a child of ctx's logger carrying fields and returns a context
// holding it, along with the child itself.
func With(ctx context.Context, fields ...zap.Field) (context.Context, *zap.Logger) {
	log := L(ctx).With(fields...)
	return NewContext(ctx, log), log
}
