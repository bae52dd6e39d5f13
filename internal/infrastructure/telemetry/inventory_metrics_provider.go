package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// sellableStatuses mirrors the batch statuses allocation draws from
var sellableStatuses = []string{"active", "low_stock"}

// GormInventoryMetricsProvider implements InventoryMetricsProvider using GORM.
// It queries the drugs and batches tables directly for aggregated metrics.
type GormInventoryMetricsProvider struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormInventoryMetricsProvider creates a new GormInventoryMetricsProvider.
func NewGormInventoryMetricsProvider(db *gorm.DB) *GormInventoryMetricsProvider {
	return &GormInventoryMetricsProvider{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (p *GormInventoryMetricsProvider) today() time.Time {
	y, m, d := p.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GetLowStockDrugCount returns the number of active drugs whose sellable
// quantity is at or below their reorder level, out-of-stock drugs included.
func (p *GormInventoryMetricsProvider) GetLowStockDrugCount(ctx context.Context) (int64, error) {
	sellable := p.db.
		Table("batches").
		Select("COALESCE(SUM(batches.quantity_on_hand), 0)").
		Where("batches.drug_id = drugs.id AND batches.status IN ? AND batches.expiry_date >= ?",
			sellableStatuses, p.today())

	var count int64
	err := p.db.WithContext(ctx).
		Table("drugs").
		Where("drugs.active = ?", true).
		Where("(?) <= drugs.reorder_level", sellable).
		Count(&count).Error

	return count, err
}

// GetExpiringBatchCount returns sellable batches with stock expiring within
// the next days days.
func (p *GormInventoryMetricsProvider) GetExpiringBatchCount(ctx context.Context, days int) (int64, error) {
	today := p.today()
	var count int64
	err := p.db.WithContext(ctx).
		Table("batches").
		Where("status IN ? AND quantity_on_hand > 0 AND expiry_date >= ? AND expiry_date <= ?",
			sellableStatuses, today, today.AddDate(0, 0, days)).
		Count(&count).Error

	return count, err
}
