package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/alert"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records pharmacy activity: sales posted, stock conflicts,
// alerts and expiry sweeps, plus periodically collected stock gauges.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	salesPostedTotal         *Counter
	unitsSoldTotal           *Counter
	saleRevenueTotal         *Counter
	allocationConflictsTotal *Counter
	saleRetriesTotal         *Counter
	batchesExpiredTotal      *Counter

	// Gauge metrics (point-in-time values)
	activeAlerts       *Gauge
	lowStockDrugs      *Gauge
	expiringBatchCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	inventoryProvider InventoryMetricsProvider
	expiryWindowDays  int
}

// InventoryMetricsProvider provides stock data for periodic metrics collection.
// This interface allows the telemetry layer to query inventory state without
// depending on the repositories directly.
type InventoryMetricsProvider interface {
	// GetLowStockDrugCount returns the number of active drugs whose sellable
	// quantity is at or below their reorder level
	GetLowStockDrugCount(ctx context.Context) (int64, error)

	// GetExpiringBatchCount returns sellable batches with stock expiring
	// within the next days days
	GetExpiringBatchCount(ctx context.Context, days int) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter             metric.Meter
	Logger            *zap.Logger
	InventoryProvider InventoryMetricsProvider
	ExpiryWindowDays  int // Default: 30
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.ExpiryWindowDays
	if window <= 0 {
		window = 30
	}

	bm := &BusinessMetrics{
		meter:             cfg.Meter,
		logger:            logger,
		stopChan:          make(chan struct{}),
		inventoryProvider: cfg.InventoryProvider,
		expiryWindowDays:  window,
	}

	counters := []struct {
		target            **Counter
		name, desc, units string
	}{
		{&bm.salesPostedTotal, "pharmaos_sales_posted_total", "Total number of sales posted", "{sales}"},
		{&bm.unitsSoldTotal, "pharmaos_units_sold_total", "Total drug units sold", "{units}"},
		{&bm.saleRevenueTotal, "pharmaos_sale_revenue_total", "Total sale revenue in cents", "{cents}"},
		{&bm.allocationConflictsTotal, "pharmaos_allocation_conflicts_total", "Stale batch snapshots detected while posting sales", "{conflicts}"},
		{&bm.saleRetriesTotal, "pharmaos_sale_retries_total", "Sale posting attempts retried after a conflict", "{retries}"},
		{&bm.batchesExpiredTotal, "pharmaos_batches_expired_total", "Batches moved to expired by the expiry sweep", "{batches}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.units)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	gauges := []struct {
		target            **Gauge
		name, desc, units string
	}{
		{&bm.activeAlerts, "pharmaos_alerts_active", "Alerts raised by the latest evaluation", "{alerts}"},
		{&bm.lowStockDrugs, "pharmaos_inventory_low_stock_drugs", "Active drugs at or below their reorder level", "{drugs}"},
		{&bm.expiringBatchCount, "pharmaos_inventory_expiring_batches", "Sellable batches expiring within the alert window", "{batches}"},
	}
	for _, g := range gauges {
		gauge, err := NewGauge(cfg.Meter, g.name, g.desc, g.units)
		if err != nil {
			return nil, err
		}
		*g.target = gauge
	}

	return bm, nil
}

// =============================================================================
// Sale Metrics
// =============================================================================

// RecordSalePosted records a committed sale with its units and total.
func (bm *BusinessMetrics) RecordSalePosted(ctx context.Context, paymentMethod string, units int, total decimal.Decimal) {
	method := AttrPaymentMethod.String(paymentMethod)
	bm.salesPostedTotal.Inc(ctx, method)
	bm.unitsSoldTotal.Add(ctx, int64(units), method)
	bm.saleRevenueTotal.Add(ctx, total.Mul(decimal.NewFromInt(100)).IntPart(), method)
}

// RecordAllocationConflict records a stale snapshot detected during posting.
func (bm *BusinessMetrics) RecordAllocationConflict(ctx context.Context) {
	bm.allocationConflictsTotal.Inc(ctx)
}

// RecordRetry records a retried posting attempt.
func (bm *BusinessMetrics) RecordRetry(ctx context.Context, attempt int) {
	bm.saleRetriesTotal.Inc(ctx, AttrAttempt.Int(attempt))
}

// =============================================================================
// Alert Metrics
// =============================================================================

// RecordAlerts records the alert count per kind of the latest evaluation.
// Kinds with no alerts are recorded as zero.
func (bm *BusinessMetrics) RecordAlerts(ctx context.Context, counts map[alert.Kind]int) {
	for _, kind := range []alert.Kind{alert.KindOutOfStock, alert.KindLowStock, alert.KindExpiringSoon, alert.KindExpired} {
		bm.activeAlerts.Record(ctx, int64(counts[kind]), AttrAlertKind.String(string(kind)))
	}
}

// RecordBatchesExpired records batches marked expired by a sweep.
func (bm *BusinessMetrics) RecordBatchesExpired(ctx context.Context, n int) {
	if n > 0 {
		bm.batchesExpiredTotal.Add(ctx, int64(n))
	}
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of stock gauges.
// It collects every interval (default: 5 minutes) and is non-blocking;
// use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.CollectInventoryMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.CollectInventoryMetrics(ctx)
		}
	}
}

// CollectInventoryMetrics records the stock gauges once.
func (bm *BusinessMetrics) CollectInventoryMetrics(ctx context.Context) {
	if bm.inventoryProvider == nil {
		bm.logger.Debug("No inventory provider configured, skipping inventory metrics collection")
		return
	}

	lowStock, err := bm.inventoryProvider.GetLowStockDrugCount(ctx)
	if err != nil {
		bm.logger.Warn("Failed to get low stock drug count", zap.Error(err))
	} else {
		bm.lowStockDrugs.Record(ctx, lowStock)
	}

	expiring, err := bm.inventoryProvider.GetExpiringBatchCount(ctx, bm.expiryWindowDays)
	if err != nil {
		bm.logger.Warn("Failed to get expiring batch count", zap.Error(err))
	} else {
		bm.expiringBatchCount.Record(ctx, expiring)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
