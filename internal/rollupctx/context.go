// Package rollupctx carries the per-request logger and tracer on a
// context.Context, mirroring the teacher's common/context.go.
package rollupctx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/based-rollup/sequencer/internal/mlog"
)

type contextKey string

var key = contextKey("rollup_context")

type values struct {
	Logger mlog.Logger
	Tracer trace.Tracer
}

// LoggerFromContext extracts the Logger carried on ctx, or a no-op logger
// if none was set.
//
//nolint:ireturn
func LoggerFromContext(ctx context.Context) mlog.Logger {
	if v, ok := ctx.Value(key).(*values); ok && v.Logger != nil {
		return v.Logger
	}

	return &mlog.NoneLogger{}
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger mlog.Logger) context.Context {
	v, _ := ctx.Value(key).(*values)
	if v == nil {
		v = &values{}
	}

	v.Logger = logger

	return context.WithValue(ctx, key, v)
}

// TracerFromContext extracts the Tracer carried on ctx, or the default
// global tracer if none was set.
//
//nolint:ireturn
func TracerFromContext(ctx context.Context) trace.Tracer {
	if v, ok := ctx.Value(key).(*values); ok && v.Tracer != nil {
		return v.Tracer
	}

	return otel.Tracer("default")
}

// WithTracer returns a context carrying tracer.
func WithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	v, _ := ctx.Value(key).(*values)
	if v == nil {
		v = &values{}
	}

	v.Tracer = tracer

	return context.WithValue(ctx, key, v)
}
