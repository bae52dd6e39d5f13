package main

import (
	"context"

	"github.com/benedict431app/PharmacyOS/internal/infrastructure/config"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/logger"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// telemetryStack groups the OTEL providers that outlive request handling.
type telemetryStack struct {
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	profiler *telemetry.Profiler
}

// setupLogging builds the application logger. When log export is enabled the
// logger tees into the OTLP bridge and the returned func flushes it.
func setupLogging(ctx context.Context, cfg *config.Config) (*zap.Logger, func(context.Context)) {
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	base, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	noop := func(context.Context) {}
	if !cfg.Telemetry.LogsEnabled {
		return base, noop
	}

	provider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           true,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, base)
	if err != nil {
		base.Warn("OTLP log export unavailable, logging locally only", zap.Error(err))
		return base, noop
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	bridged, err := logger.New(logCfg, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: provider,
		Level:          level,
	}))
	if err != nil {
		base.Warn("Failed to bridge logger to OTLP", zap.Error(err))
		_ = provider.Shutdown(ctx)
		return base, noop
	}

	return bridged, func(ctx context.Context) {
		_ = bridged.Sync()
		if err := provider.Shutdown(ctx); err != nil {
			base.Error("Error shutting down log provider", zap.Error(err))
		}
	}
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, error) {
	t := cfg.Telemetry

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             t.ProfilingEnabled,
		ServerAddress:       t.ProfilingServer,
		ApplicationName:     t.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		// Profiling is optional
		log.Warn("Continuous profiling unavailable", zap.Error(err))
		profiler = nil
	}

	if t.Enabled && profiler != nil && profiler.IsEnabled() {
		if err := tracer.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	return &telemetryStack{tracer: tracer, meters: meters, profiler: profiler}, nil
}

// shutdown flushes the providers in reverse start order.
func (s *telemetryStack) shutdown(ctx context.Context, log *zap.Logger) {
	if s.profiler != nil {
		if err := s.profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}
	if err := s.meters.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
}

// instrumentDatabase attaches query tracing and pool metrics to the shared
// connection. It returns nil when metrics are off.
func instrumentDatabase(ctx context.Context, cfg *config.Config, db *persistence.Database, meters *telemetry.MeterProvider, log *zap.Logger) *telemetry.DBMetrics {
	t := cfg.Telemetry

	if t.Enabled && t.DBTraceEnabled {
		system := "postgresql"
		if db.Driver == persistence.DriverSQLite {
			system = "sqlite"
		}
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			LogFullSQL:       t.DBLogFullSQL,
			SlowQueryThresh:  t.DBSlowQueryThresh,
			DBSystem:         system,
			WithoutVariables: !t.DBLogFullSQL,
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	metricsCfg := telemetry.DefaultDBMetricsConfig()
	metricsCfg.Enabled = t.MetricsEnabled
	metricsCfg.SlowQueryThreshold = t.DBSlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meters, metricsCfg, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
		return nil
	}
	if dbMetrics == nil {
		return nil
	}
	dbMetrics.StartPoolStatsCollection(ctx)
	return dbMetrics
}

// newBusinessMetrics returns nil when metrics export is off so callers keep
// their no-op recorders.
func newBusinessMetrics(cfg *config.Config, db *persistence.Database, meters *telemetry.MeterProvider, log *zap.Logger) *telemetry.BusinessMetrics {
	if meters == nil || !meters.IsEnabled() {
		return nil
	}
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:             meters.Meter("pharmaos.business"),
		Logger:            log,
		InventoryProvider: telemetry.NewGormInventoryMetricsProvider(db.DB),
		ExpiryWindowDays:  cfg.Alerts.ExpiryWindowDays,
	})
	if err != nil {
		log.Warn("Business metrics unavailable", zap.Error(err))
		return nil
	}
	return bm
}
