package telemetry

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig controls query and pool instrumentation. Zero durations
// fall back to DefaultDBMetricsConfig.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// DBMetrics records per-statement latency and periodically samples the
// connection pool backing the ledger.
type DBMetrics struct {
	queries     *Counter
	latency     *Histogram
	slowQueries *Counter
	poolConns   *Gauge
	poolMax     *Gauge

	cfg DBMetricsConfig
	log *zap.Logger

	mu    sync.Mutex
	sqlDB *sql.DB

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultDBMetricsConfig()
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = def.SlowQueryThreshold
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = def.PoolStatsInterval
	}

	m := &DBMetrics{cfg: cfg, log: log, stop: make(chan struct{})}
	var err error
	if m.queries, err = NewCounter(meter, "db_query_total", "Statements executed by SQL verb", "{query}"); err != nil {
		return nil, err
	}
	if m.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueries, err = NewCounter(meter, "db_slow_query_total", "Statements slower than the configured threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.poolConns, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolMax, err = NewGauge(meter, "db_pool_connections_max", "Configured pool size", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

// SetSQLDB attaches the pool sampled by StartPoolStatsCollection.
func (m *DBMetrics) SetSQLDB(db *sql.DB) {
	m.mu.Lock()
	m.sqlDB = db
	m.mu.Unlock()
}

func (m *DBMetrics) pool() *sql.DB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sqlDB
}

// StartPoolStatsCollection samples pool stats until Stop or ctx is done.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	if m.pool() == nil {
		m.log.Warn("Pool stats skipped: no sql.DB attached")
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PoolStatsInterval)
		defer ticker.Stop()
		for {
			m.samplePool(ctx)
			select {
			case <-ticker.C:
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *DBMetrics) samplePool(ctx context.Context) {
	db := m.pool()
	if db == nil {
		return
	}
	s := db.Stats()
	m.poolMax.Record(ctx, int64(s.MaxOpenConnections))
	m.poolConns.Record(ctx, int64(s.Idle), AttrDBState.String("idle"))
	m.poolConns.Record(ctx, int64(s.InUse), AttrDBState.String("in_use"))
	m.poolConns.Record(ctx, int64(s.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool sampling. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()
	})
}

// RecordQuery counts one statement. Statements over the slow threshold are
// also counted per table.
func (m *DBMetrics) RecordQuery(ctx context.Context, verb, table string, elapsed time.Duration) {
	if verb == "" {
		verb = "OTHER"
	}
	op := AttrDBOperation.String(verb)
	m.queries.Inc(ctx, op)
	m.latency.RecordDuration(ctx, elapsed, op)
	if elapsed > m.cfg.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueries.Inc(ctx, AttrDBTable.String(table))
	}
}

// DBMetricsPlugin is the gorm.Plugin feeding DBMetrics.
type DBMetricsPlugin struct {
	metrics *DBMetrics
	log     *zap.Logger
}

func NewDBMetricsPlugin(metrics *DBMetrics, log *zap.Logger) *DBMetricsPlugin {
	if log == nil {
		log = zap.NewNop()
	}
	return &DBMetricsPlugin{metrics: metrics, log: log}
}

func (p *DBMetricsPlugin) Name() string { return "pharmaos:db_metrics" }

func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	return hookStatements(db, "db_metrics", func(tx *gorm.DB, verb string, elapsed time.Duration) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		p.metrics.RecordQuery(ctx, verb, tx.Statement.Table, elapsed)
	})
}

// RegisterDBMetrics installs the query plugin on db and attaches its pool.
// It returns nil metrics when disabled or when no meter provider is exporting.
// Callers own the returned value and must Stop it.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || mp == nil || !mp.IsEnabled() {
		return nil, nil
	}
	metrics, err := NewDBMetrics(mp.Meter("db.client"), cfg, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.SetSQLDB(sqlDB)
	if err := db.Use(NewDBMetricsPlugin(metrics, log)); err != nil {
		return nil, err
	}
	log.Info("Database metrics registered", zap.Duration("slow_query_threshold", metrics.cfg.SlowQueryThreshold))
	return metrics, nil
}
