package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BatchReader provides read access to batches
type BatchReader interface {
	// FindByID returns a batch or shared.ErrUnknownBatch
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// ListAvailableBatches returns the drug's active and low_stock batches
	// that have not passed expiry, ordered by expiry date then lot number
	ListAvailableBatches(ctx context.Context, drugID uuid.UUID) ([]Batch, error)

	// ListByDrug returns every batch of a drug regardless of status
	ListByDrug(ctx context.Context, drugID uuid.UUID) ([]Batch, error)

	// ListAll returns every batch, used as the alert snapshot
	ListAll(ctx context.Context) ([]Batch, error)

	// ListExpiredUnmarked returns sellable-status batches whose expiry date is before asOf
	ListExpiredUnmarked(ctx context.Context, asOf time.Time) ([]Batch, error)

	// CountExpiringBetween counts sellable batches with stock expiring in [from, to]
	CountExpiringBetween(ctx context.Context, from, to time.Time) (int64, error)

	// ExistsByLot checks if a lot number is already used for a drug
	ExistsByLot(ctx context.Context, drugID uuid.UUID, lotNumber string) (bool, error)
}

// BatchStore is the sole owner of batch quantities. Every quantity change
// goes through Decrement or Increment.
type BatchStore interface {
	BatchReader

	// LockAvailableBatches is ListAvailableBatches with row locks held until
	// the surrounding transaction ends, where the database supports them
	LockAvailableBatches(ctx context.Context, drugID uuid.UUID) ([]Batch, error)

	// Create persists a newly received batch
	Create(ctx context.Context, batch *Batch) error

	// Decrement removes amount units. It returns an *shared.InsufficientStockError
	// when amount exceeds the stored quantity, shared.ErrStorageConflict when
	// the batch changed since it was read, and shared.ErrUnknownBatch if absent.
	Decrement(ctx context.Context, batchID uuid.UUID, amount int) error

	// Increment adds amount units, shared.ErrUnknownBatch if absent
	Increment(ctx context.Context, batchID uuid.UUID, amount int) error

	// UpdateStatus persists a status transition such as recall or expiry
	UpdateStatus(ctx context.Context, batch *Batch) error

	// ReconcileDrugStatus re-derives active/low_stock for the sellable
	// batches of a drug from its total on-hand quantity and reorder level.
	// Decrement, Increment, Create and UpdateStatus call it themselves.
	ReconcileDrugStatus(ctx context.Context, drugID uuid.UUID) error
}
