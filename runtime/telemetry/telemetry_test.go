package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"goa.design/clue/log"

	"goa.design/dashpanels/runtime/telemetry"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	tracer := telemetry.NewNoopTracer()

	newCtx, span := tracer.Start(ctx, "test.operation")
	require.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.AddEvent("test.event", "key", "value")
	span.SetStatus(codes.Ok, "completed")
	span.RecordError(errors.New("test error"))
	span.End()
}

func TestNoopMetrics(_ *testing.T) {
	metrics := telemetry.NewNoopMetrics()
	metrics.IncCounter("test.counter", 1, "env", "test")
	metrics.RecordTimer("test.timer", time.Millisecond, "env", "test")
}

func TestClueImplementations(t *testing.T) {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatJSON))
	logger := telemetry.NewClueLogger()
	logger.Debug(ctx, "debug", "k", "v")
	logger.Info(ctx, "info", "k", 1, 2, "skipped")
	logger.Warn(ctx, "warn", "dangling")
	logger.Error(ctx, "error", "err", errors.New("boom"))

	// Global OTEL providers default to no-ops; calls must not panic.
	metrics := telemetry.NewClueMetrics()
	metrics.IncCounter("dashpanels.test.counter", 1, "tool", "x")
	metrics.RecordTimer("dashpanels.test.timer", time.Second)

	tracer := telemetry.NewClueTracer()
	spanCtx, span := tracer.Start(ctx, "dashpanels.test")
	require.NotNil(t, spanCtx)
	span.AddEvent("evt", "n", 1, "ok", true, "f", 1.5, "s", "x", "other", struct{}{})
	span.SetStatus(codes.Error, "failed")
	span.End()
}
