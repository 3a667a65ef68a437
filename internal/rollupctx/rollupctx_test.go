package rollupctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"

	"github.com/based-rollup/sequencer/internal/mlog"
)

func TestLoggerFromContext_DefaultsToNoneLogger(t *testing.T) {
	t.Parallel()

	logger := LoggerFromContext(context.Background())
	assert.IsType(t, &mlog.NoneLogger{}, logger)
}

func TestWithLogger_RoundTrips(t *testing.T) {
	t.Parallel()

	base := &mlog.NoneLogger{}
	ctx := WithLogger(context.Background(), base)

	assert.Same(t, base, LoggerFromContext(ctx))
}

func TestTracerFromContext_DefaultsToGlobalTracer(t *testing.T) {
	t.Parallel()

	tracer := TracerFromContext(context.Background())
	assert.Equal(t, otel.Tracer("default"), tracer)
}

func TestWithTracer_RoundTrips(t *testing.T) {
	t.Parallel()

	tracer := otel.Tracer("custom")
	ctx := WithTracer(context.Background(), tracer)

	assert.Equal(t, tracer, TracerFromContext(ctx))
}

func TestWithLoggerThenWithTracer_PreservesBoth(t *testing.T) {
	t.Parallel()

	base := &mlog.NoneLogger{}
	tracer := otel.Tracer("combined")

	ctx := WithLogger(context.Background(), base)
	ctx = WithTracer(ctx, tracer)

	assert.Same(t, base, LoggerFromContext(ctx))
	assert.Equal(t, tracer, TracerFromContext(ctx))
}
