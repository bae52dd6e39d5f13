package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{ServiceName: "pharmaos"}, logger)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "pharmaos"}, logger)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{}, logger)
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
	assert.NoError(t, lp.Shutdown(ctx), "shutdown is repeatable")

	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, logger)
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresServerAndName(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ApplicationName: "pharmaos"}, logger)
	assert.Error(t, err)

	_, err = telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, logger)
	assert.Error(t, err)
}

func TestZapOTELCore_DisabledProviderIsNop(t *testing.T) {
	core := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{ServiceName: "pharmaos"})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))

	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{}, zap.NewNop())
	require.NoError(t, err)
	core = telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{ServiceName: "pharmaos", LoggerProvider: lp})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	meter := mp.Meter("test")
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "sales_test_total", "sales", "{sales}")
	require.NoError(t, err)
	counter.Add(ctx, 2, telemetry.AttrPaymentMethod.String("cash"))
	counter.Inc(ctx, telemetry.AttrPaymentMethod.String("card"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "post_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.DBDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 30*time.Millisecond)
	hist.Record(ctx, 0.2)

	gauge, err := telemetry.NewGauge(meter, "stock_test", "stock", "{units}")
	require.NoError(t, err)
	gauge.Record(ctx, 17)

	fgauge, err := telemetry.NewFloatGauge(meter, "ratio_test", "ratio", "1")
	require.NoError(t, err)
	fgauge.Record(ctx, 0.5)

	got := collectedMetrics(t, reader)
	assert.Equal(t, int64(3), sumOf(t, got["sales_test_total"]))

	h := got["post_duration_seconds"].(metricdata.Histogram[float64])
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(2), h.DataPoints[0].Count)
	assert.Equal(t, telemetry.DBDurationBuckets, h.DataPoints[0].Bounds)

	assert.Equal(t, int64(17), got["stock_test"].(metricdata.Gauge[int64]).DataPoints[0].Value)
	assert.InDelta(t, 0.5, got["ratio_test"].(metricdata.Gauge[float64]).DataPoints[0].Value, 0.0001)
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, attribute.Key("payment_method"), telemetry.AttrPaymentMethod)
	assert.Equal(t, attribute.Key("alert_kind"), telemetry.AttrAlertKind)
	assert.Equal(t, attribute.Key("db.operation"), telemetry.AttrDBOperation)
}

func TestRegisterDBMetrics_DisabledProvider(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)

	metrics, err := telemetry.RegisterDBMetrics(nil, mp, telemetry.DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, metrics)
}
