package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertapp "github.com/benedict431app/PharmacyOS/internal/application/alert"
	forecastapp "github.com/benedict431app/PharmacyOS/internal/application/forecast"
	inventoryapp "github.com/benedict431app/PharmacyOS/internal/application/inventory"
	reportapp "github.com/benedict431app/PharmacyOS/internal/application/report"
	salesapp "github.com/benedict431app/PharmacyOS/internal/application/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/alert"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/cache"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/config"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/event"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/logger"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/scheduler"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/strategy"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/handler"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/middleware"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, shutdownTelemetry := setupLogging(ctx, cfg)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting PharmacyOS backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tel, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tel.shutdown(shutdownCtx, log)
		shutdownTelemetry(shutdownCtx)
	}()

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", db.Driver))

	dbMetrics := instrumentDatabase(ctx, cfg, db, tel.meters, log)
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Repositories
	drugRepo := persistence.NewGormDrugRepository(db.DB)
	batchRepo := persistence.NewGormBatchRepository(db.DB, nil)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	forecastRepo := persistence.NewGormForecastRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB, nil)

	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		log.Fatal("Failed to register strategies", zap.Error(err))
	}

	idempotencyStore, err := cache.OpenIdempotencyStore(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	eventBus := event.NewInMemoryEventBus(log)

	// Application services
	saleService := salesapp.NewSaleService(saleRepo, drugRepo, batchRepo, txScope, registry, salesapp.Config{
		TaxRate:            cfg.Sales.TaxRate,
		MaxRetries:         cfg.Sales.MaxRetries,
		AllocationStrategy: cfg.Sales.AllocationStrategy,
		Idempotency: shared.IdempotencyConfig{
			TTL:     cfg.Sales.IdempotencyTTL,
			Enabled: true,
		},
	}, log)
	saleService.SetIdempotencyStore(idempotencyStore)
	saleService.SetEventPublisher(eventBus)

	inventoryService := inventoryapp.NewInventoryService(batchRepo, drugRepo, txScope, log)
	inventoryService.SetEventPublisher(eventBus)

	alertService := alertapp.NewAlertService(drugRepo, batchRepo, alert.Rules{
		ExpiryWindowDays: cfg.Alerts.ExpiryWindowDays,
		CriticalDays:     cfg.Alerts.CriticalDays,
	}, log)
	alertService.SetEventPublisher(eventBus)

	forecastService := forecastapp.NewForecastService(forecastRepo, saleRepo, drugRepo, registry, forecastapp.Config{
		WindowDays:     cfg.Forecast.WindowDays,
		MinDataPoints:  cfg.Forecast.MinDataPoints,
		DefaultModel:   cfg.Forecast.DefaultModel,
		DefaultHorizon: cfg.Forecast.DefaultHorizon,
	}, log)

	reportService := reportapp.NewReportService(saleRepo, drugRepo, batchRepo, cfg.Alerts.ExpiryWindowDays)

	if business := newBusinessMetrics(cfg, db, tel.meters, log); business != nil {
		saleService.SetMetrics(business)
		alertService.SetMetrics(business)
		business.StartPeriodicCollection(ctx, time.Minute)
		defer business.Stop()
	}

	// Low-stock alerts follow every posted sale
	eventBus.Subscribe(event.NewIdempotentHandler(
		alertapp.NewSalePostedHandler(alertService, log).WithNotifier(alertapp.NewLoggingNotifier(log)),
		idempotencyStore,
		shared.IdempotencyConfig{TTL: cfg.Sales.IdempotencyTTL, Enabled: true},
		log,
	))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	stopJobs := startBackgroundJobs(ctx, cfg, alertService, forecastService, log)
	defer stopJobs()

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// The request ID must exist before anything logs, and the span
	// annotators must run inside the otelgin handler.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.App.Env == "production"
	engine.Use(middleware.SecureWithConfig(security))
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanAttributes(), middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: tel.meters,
		Enabled:       cfg.Telemetry.MetricsEnabled,
		Logger:        log,
	}))
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}

	health := handler.NewHealthHandler(cfg.App.Name, version).
		WithCheck("database", func(context.Context) error { return db.Ping() })
	if redisStore, ok := idempotencyStore.(*cache.RedisIdempotencyStore); ok {
		health.WithCheck("redis", redisStore.Ping)
	}
	engine.GET("/health", health.Health)

	r := router.NewRouter(engine)
	r.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		r.Use(middleware.RateLimit(limiter))
	}
	groups := router.RegisterAPI(r, router.Handlers{
		Sales:     handler.NewSaleHandler(saleService),
		Inventory: handler.NewInventoryHandler(inventoryService),
		Alerts:    handler.NewAlertHandler(alertService),
		Forecasts: handler.NewForecastHandler(forecastService),
		Reports:   handler.NewReportHandler(reportService),
	})
	r.Setup()
	for _, g := range groups {
		log.Debug("Routes registered", zap.String("group", g.Name()), zap.Strings("routes", g.Routes(r.BasePath())))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

// startBackgroundJobs runs the expiry sweep on an interval and the forecast
// run once a day. The returned func stops triggers before the scheduler.
func startBackgroundJobs(
	ctx context.Context,
	cfg *config.Config,
	alerts *alertapp.AlertService,
	forecasts *forecastapp.ForecastService,
	log *zap.Logger,
) func() {
	if !cfg.Alerts.SweepEnabled && !cfg.Forecast.DailyEnabled {
		return func() {}
	}

	executor := scheduler.NewTaskExecutor().
		Register(scheduler.JobTypeExpirySweep, func(ctx context.Context) error {
			_, err := alerts.SweepExpired(ctx)
			return err
		}).
		Register(scheduler.JobTypeForecastRun, func(ctx context.Context) error {
			_, err := forecasts.RunAll(ctx, cfg.Forecast.DefaultHorizon)
			return err
		})

	jobs := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(), executor, log)
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	type trigger interface {
		Start(ctx context.Context) error
		Stop(ctx context.Context) error
	}
	var triggers []trigger
	if cfg.Alerts.SweepEnabled {
		triggers = append(triggers, scheduler.NewIntervalTrigger(cfg.Alerts.SweepInterval, scheduler.JobTypeExpirySweep, jobs, log))
	}
	if cfg.Forecast.DailyEnabled {
		triggers = append(triggers, scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			DailyHour:   cfg.Forecast.DailyHour,
			DailyMinute: cfg.Forecast.DailyMinute,
		}, scheduler.JobTypeForecastRun, jobs, log))
	}
	for _, t := range triggers {
		if err := t.Start(ctx); err != nil {
			log.Fatal("Failed to start job trigger", zap.Error(err))
		}
	}

	log.Info("Background jobs started",
		zap.Bool("expiry_sweep", cfg.Alerts.SweepEnabled),
		zap.Duration("sweep_interval", cfg.Alerts.SweepInterval),
		zap.Bool("daily_forecast", cfg.Forecast.DailyEnabled),
	)

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, t := range triggers {
			if err := t.Stop(stopCtx); err != nil {
				log.Error("Error stopping job trigger", zap.Error(err))
			}
		}
		if err := jobs.Stop(stopCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}
}
