package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Clock returns the current time. Repositories and services take one so
// expiry can be tested against fixed dates.
type Clock func() time.Time

// SystemClock is the wall clock in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

// GormBatchRepository implements inventory.BatchStore using GORM
type GormBatchRepository struct {
	db  *gorm.DB
	now Clock
}

// NewGormBatchRepository creates a new GormBatchRepository. A nil clock
// means the system clock.
func NewGormBatchRepository(db *gorm.DB, now Clock) *GormBatchRepository {
	if now == nil {
		now = SystemClock
	}
	return &GormBatchRepository{db: db, now: now}
}

func sellableStatuses() []string {
	statuses := inventory.SellableStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// toDomain converts a model and derives expiry lazily, so a batch whose
// expiry date has passed reads as expired even before the sweep persists it.
func (r *GormBatchRepository) toDomain(m *models.BatchModel) *inventory.Batch {
	b := m.ToDomain()
	if b.Status.IsSellable() && b.IsExpiredAt(r.now()) {
		b.Status = inventory.BatchStatusExpired
	}
	return b
}

func (r *GormBatchRepository) toDomainSlice(ms []models.BatchModel) []inventory.Batch {
	out := make([]inventory.Batch, len(ms))
	for i := range ms {
		out[i] = *r.toDomain(&ms[i])
	}
	return out
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var m models.BatchModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrUnknownBatch
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

func (r *GormBatchRepository) availableQuery(ctx context.Context, drugID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("drug_id = ? AND status IN ? AND expiry_date >= ?", drugID, sellableStatuses(), inventory.DateOf(r.now())).
		Order("expiry_date ASC").
		Order("lot_number ASC")
}

// ListAvailableBatches returns sellable, unexpired batches in FEFO order
func (r *GormBatchRepository) ListAvailableBatches(ctx context.Context, drugID uuid.UUID) ([]inventory.Batch, error) {
	var ms []models.BatchModel
	if err := r.availableQuery(ctx, drugID).Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(ms), nil
}

// LockAvailableBatches reads the same rows as ListAvailableBatches and, on
// PostgreSQL, holds FOR UPDATE locks on them until the transaction ends.
// Rows are locked in FEFO order so concurrent sales acquire them in the same
// sequence.
func (r *GormBatchRepository) LockAvailableBatches(ctx context.Context, drugID uuid.UUID) ([]inventory.Batch, error) {
	q := r.availableQuery(ctx, drugID)
	if supportsRowLocks(r.db) {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	var ms []models.BatchModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return r.toDomainSlice(ms), nil
}

// ListByDrug returns every batch of a drug, newest expiry last
func (r *GormBatchRepository) ListByDrug(ctx context.Context, drugID uuid.UUID) ([]inventory.Batch, error) {
	var ms []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("drug_id = ?", drugID).
		Order("expiry_date ASC").
		Order("lot_number ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(ms), nil
}

// ListAll returns every batch
func (r *GormBatchRepository) ListAll(ctx context.Context) ([]inventory.Batch, error) {
	var ms []models.BatchModel
	if err := r.db.WithContext(ctx).
		Order("drug_id ASC").
		Order("expiry_date ASC").
		Order("lot_number ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(ms), nil
}

// ListExpiredUnmarked returns batches still stored as sellable whose expiry
// date is before asOf. Statuses are returned as stored so callers can
// transition them.
func (r *GormBatchRepository) ListExpiredUnmarked(ctx context.Context, asOf time.Time) ([]inventory.Batch, error) {
	var ms []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND expiry_date < ?", sellableStatuses(), inventory.DateOf(asOf)).
		Order("expiry_date ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return models.BatchesToDomain(ms), nil
}

// CountExpiringBetween counts sellable batches with stock expiring in [from, to]
func (r *GormBatchRepository) CountExpiringBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("status IN ? AND quantity_on_hand > 0 AND expiry_date >= ? AND expiry_date <= ?",
			sellableStatuses(), inventory.DateOf(from), inventory.DateOf(to)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByLot checks if a lot number is already used for a drug
func (r *GormBatchRepository) ExistsByLot(ctx context.Context, drugID uuid.UUID, lotNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("drug_id = ? AND lot_number = ?", drugID, lotNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create persists a newly received batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *inventory.Batch) error {
	err := r.db.WithContext(ctx).Create(models.BatchModelFromDomain(batch)).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: lot %s already exists for this drug", shared.ErrValidation, batch.LotNumber)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s", shared.ErrUnknownDrug, batch.DrugID)
	default:
		return translateError(err)
	}
	return r.ReconcileDrugStatus(ctx, batch.DrugID)
}

// Decrement removes amount units with a guarded conditional update. The
// update only applies while the batch still holds enough stock and is
// sellable, so a stale snapshot can never drive the quantity negative.
func (r *GormBatchRepository) Decrement(ctx context.Context, batchID uuid.UUID, amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: decrement amount must be positive", shared.ErrValidation)
	}

	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND quantity_on_hand >= ? AND status IN ? AND expiry_date >= ?",
			batchID, amount, sellableStatuses(), inventory.DateOf(r.now())).
		Updates(map[string]any{
			"quantity_on_hand": gorm.Expr("quantity_on_hand - ?", amount),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       r.now(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}

	var current models.BatchModel
	if err := r.db.WithContext(ctx).First(&current, "id = ?", batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrUnknownBatch
		}
		return translateError(err)
	}

	if result.RowsAffected == 0 {
		if current.QuantityOnHand < amount {
			return shared.NewInsufficientStockError(current.DrugID, amount, current.QuantityOnHand)
		}
		return fmt.Errorf("%w: batch %s is no longer sellable", shared.ErrStorageConflict, current.LotNumber)
	}
	return r.ReconcileDrugStatus(ctx, current.DrugID)
}

// Increment adds amount units to a batch that has not been recalled
func (r *GormBatchRepository) Increment(ctx context.Context, batchID uuid.UUID, amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: restock amount must be positive", shared.ErrValidation)
	}

	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND status <> ?", batchID, string(inventory.BatchStatusRecalled)).
		Updates(map[string]any{
			"quantity_on_hand": gorm.Expr("quantity_on_hand + ?", amount),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       r.now(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}

	var current models.BatchModel
	if err := r.db.WithContext(ctx).First(&current, "id = ?", batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrUnknownBatch
		}
		return translateError(err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s has been recalled", shared.ErrInvalidState, current.LotNumber)
	}
	return r.ReconcileDrugStatus(ctx, current.DrugID)
}

// UpdateStatus persists a status transition made on the aggregate. The
// aggregate has already bumped its version, so the row must still hold the
// previous one.
func (r *GormBatchRepository) UpdateStatus(ctx context.Context, batch *inventory.Batch) error {
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND version = ?", batch.ID, batch.Version-1).
		Updates(map[string]any{
			"status":     string(batch.Status),
			"version":    batch.Version,
			"updated_at": batch.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		exists, err := r.exists(ctx, batch.ID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.ErrUnknownBatch
		}
		return fmt.Errorf("%w: batch %s was modified concurrently", shared.ErrStorageConflict, batch.LotNumber)
	}
	return r.ReconcileDrugStatus(ctx, batch.DrugID)
}

func (r *GormBatchRepository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReconcileDrugStatus flips the drug's sellable batches between active and
// low_stock according to the total quantity they hold.
func (r *GormBatchRepository) ReconcileDrugStatus(ctx context.Context, drugID uuid.UUID) error {
	var drug models.DrugModel
	if err := r.db.WithContext(ctx).Select("id", "reorder_level").First(&drug, "id = ?", drugID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrUnknownDrug
		}
		return translateError(err)
	}

	today := inventory.DateOf(r.now())
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Select("COALESCE(SUM(quantity_on_hand), 0)").
		Where("drug_id = ? AND status IN ? AND expiry_date >= ?", drugID, sellableStatuses(), today).
		Scan(&total).Error; err != nil {
		return translateError(err)
	}

	target := inventory.DeriveStatus(inventory.BatchStatusActive, today, today, int(total), drug.ReorderLevel)
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("drug_id = ? AND status IN ? AND status <> ? AND expiry_date >= ?",
			drugID, sellableStatuses(), string(target), today).
		Updates(map[string]any{
			"status":     string(target),
			"version":    gorm.Expr("version + 1"),
			"updated_at": r.now(),
		})
	return translateError(result.Error)
}

// Ensure GormBatchRepository implements inventory.BatchStore
var _ inventory.BatchStore = (*GormBatchRepository)(nil)
