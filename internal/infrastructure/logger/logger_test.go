package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConfigForEnvironment(t *testing.T) {
	assert.Equal(t, "console", ConfigForEnvironment("development", "info").Format)
	assert.Equal(t, "json", ConfigForEnvironment("production", "warn").Format)
	assert.Equal(t, "warn", ConfigForEnvironment("production", "warn").Level)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pharmaos.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("batch received", zap.String("lot", "LOT-1"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lot":"LOT-1"`)
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	l, err := New(&Config{Level: "error", Format: "json", Output: "stderr"}, core)
	require.NoError(t, err)
	l.Info("sweep finished")

	assert.Equal(t, 1, recorded.Len())
}

func TestNew_BadFilePath(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestContextLogger_InjectsCorrelationFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTerminalID(ctx, "till-3")
	ctx = WithIdempotencyKey(ctx, "key-9")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	L(ctx).With(zap.String("drug_id", "d-1")).Info("sale posted")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "till-3", fields["terminal_id"])
	assert.Equal(t, "key-9", fields["idempotency_key"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "d-1", fields["drug_id"])
}

func TestContextLogger_OmitsMissingFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	WithLogger(context.Background(), zap.New(core)).Warn("no stock")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.NotContains(t, fields, "request_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	assert.NotPanics(t, func() {
		L(context.Background()).Error("dropped")
	})
	assert.Empty(t, GetRequestID(context.Background()))
}
