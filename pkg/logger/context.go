package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Ctx returns the global logger annotated with the trace and span id of ctx.
func Ctx(ctx context.Context) *zap.Logger {
	log := zap.L()
	if ctx == nil {
		return log
	}

	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}

	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
