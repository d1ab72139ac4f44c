package logger

import (
	"context"
	"testing"

	"creator-ledger/pkg/config"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildLevel(t *testing.T) {
	log, err := build(&config.Config{AppEnv: "production", LogLevel: "warn"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log, err = build(&config.Config{})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))

	_, err = build(&config.Config{LogLevel: "loud"})
	require.Error(t, err)
}

func TestNewReplacesGlobals(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log := New(ConfigParams{Cfg: &config.Config{AppEnv: "test", AppName: "creator-ledger", LogLevel: "error"}})
	require.Same(t, log, zap.L())
}

func TestCtx(t *testing.T) {
	require.Same(t, zap.L(), Ctx(context.Background()))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	require.NotSame(t, zap.L(), Ctx(ctx))
}
