package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the lifecycle state of a batch
type BatchStatus string

const (
	BatchStatusActive   BatchStatus = "active"
	BatchStatusLowStock BatchStatus = "low_stock"
	BatchStatusExpired  BatchStatus = "expired"
	BatchStatusRecalled BatchStatus = "recalled"
)

// IsValid checks if the status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusActive, BatchStatusLowStock, BatchStatusExpired, BatchStatusRecalled:
		return true
	}
	return false
}

// IsSellable reports whether batches in this status may be allocated
func (s BatchStatus) IsSellable() bool {
	return s == BatchStatusActive || s == BatchStatusLowStock
}

// SellableStatuses returns the statuses eligible for allocation
func SellableStatuses() []BatchStatus {
	return []BatchStatus{BatchStatusActive, BatchStatusLowStock}
}

// Batch is a physical lot of a drug with its own expiry date and quantity.
// QuantityOnHand is only changed through Decrement and Increment.
type Batch struct {
	shared.BaseAggregateRoot
	DrugID         uuid.UUID
	LotNumber      string
	QuantityOnHand int
	ExpiryDate     time.Time
	PurchaseDate   time.Time
	CostPrice      decimal.Decimal
	Status         BatchStatus
}

// NewBatch creates a batch on receipt of stock
func NewBatch(
	drugID uuid.UUID,
	lotNumber string,
	quantity int,
	expiryDate, purchaseDate time.Time,
	costPrice decimal.Decimal,
) (*Batch, error) {
	lotNumber = strings.TrimSpace(lotNumber)
	if drugID == uuid.Nil {
		return nil, fmt.Errorf("%w: drug id is required", shared.ErrValidation)
	}
	if lotNumber == "" {
		return nil, fmt.Errorf("%w: lot number is required", shared.ErrValidation)
	}
	if len(lotNumber) > 50 {
		return nil, fmt.Errorf("%w: lot number cannot exceed 50 characters", shared.ErrValidation)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: received quantity must be positive", shared.ErrValidation)
	}
	if expiryDate.IsZero() {
		return nil, fmt.Errorf("%w: expiry date is required", shared.ErrValidation)
	}
	if costPrice.IsNegative() {
		return nil, fmt.Errorf("%w: cost price cannot be negative", shared.ErrValidation)
	}
	if purchaseDate.IsZero() {
		purchaseDate = time.Now().UTC()
	}
	if DateOf(expiryDate).Before(DateOf(purchaseDate)) {
		return nil, fmt.Errorf("%w: expiry date is before purchase date", shared.ErrValidation)
	}

	b := &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DrugID:            drugID,
		LotNumber:         lotNumber,
		QuantityOnHand:    quantity,
		ExpiryDate:        DateOf(expiryDate),
		PurchaseDate:      DateOf(purchaseDate),
		CostPrice:         costPrice,
		Status:            BatchStatusActive,
	}
	b.AddDomainEvent(NewBatchReceivedEvent(b))
	return b, nil
}

// DateOf truncates t to its calendar date in UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsExpiredAt reports whether the expiry date has passed on the given day.
// A batch is still sellable on its expiry date.
func (b *Batch) IsExpiredAt(now time.Time) bool {
	return DateOf(now).After(DateOf(b.ExpiryDate))
}

// DaysUntilExpiry returns whole days from now until the expiry date,
// negative once expired.
func (b *Batch) DaysUntilExpiry(now time.Time) int {
	return int(DateOf(b.ExpiryDate).Sub(DateOf(now)).Hours() / 24)
}

// ExpiresWithin reports whether the batch expires within the next days days
// (and has not yet expired).
func (b *Batch) ExpiresWithin(now time.Time, days int) bool {
	left := b.DaysUntilExpiry(now)
	return left >= 0 && left <= days
}

// IsAllocatable reports whether the batch can be drawn from at now
func (b *Batch) IsAllocatable(now time.Time) bool {
	return b.Status.IsSellable() && !b.IsExpiredAt(now) && b.QuantityOnHand > 0
}

// Decrement removes amount units from the batch
func (b *Batch) Decrement(amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: decrement amount must be positive", shared.ErrValidation)
	}
	if !b.Status.IsSellable() {
		return fmt.Errorf("%w: batch %s is %s", shared.ErrInvalidState, b.LotNumber, b.Status)
	}
	if amount > b.QuantityOnHand {
		return shared.NewInsufficientStockError(b.DrugID, amount, b.QuantityOnHand)
	}
	b.QuantityOnHand -= amount
	b.Touch()
	b.IncrementVersion()
	return nil
}

// Increment adds restocked units to the batch
func (b *Batch) Increment(amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: restock amount must be positive", shared.ErrValidation)
	}
	if b.Status == BatchStatusRecalled {
		return fmt.Errorf("%w: batch %s has been recalled", shared.ErrInvalidState, b.LotNumber)
	}
	b.QuantityOnHand += amount
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchRestockedEvent(b, amount))
	return nil
}

// Recall withdraws the batch from sale permanently
func (b *Batch) Recall(reason string) error {
	if b.Status == BatchStatusRecalled {
		return fmt.Errorf("%w: batch %s is already recalled", shared.ErrInvalidState, b.LotNumber)
	}
	b.Status = BatchStatusRecalled
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchRecalledEvent(b, reason))
	return nil
}

// MarkExpired moves a past-expiry batch to expired. It returns false when
// nothing changed.
func (b *Batch) MarkExpired(now time.Time) bool {
	if b.Status == BatchStatusRecalled || b.Status == BatchStatusExpired || !b.IsExpiredAt(now) {
		return false
	}
	b.Status = BatchStatusExpired
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchExpiredEvent(b))
	return true
}

// DeriveStatus computes the status a batch should hold. Recalled is sticky,
// expiry wins over stock level, and the stock level is judged on the drug's
// total sellable quantity, not this batch alone.
func DeriveStatus(current BatchStatus, expiryDate, now time.Time, drugOnHand, reorderLevel int) BatchStatus {
	if current == BatchStatusRecalled {
		return BatchStatusRecalled
	}
	if DateOf(now).After(DateOf(expiryDate)) {
		return BatchStatusExpired
	}
	if drugOnHand <= reorderLevel {
		return BatchStatusLowStock
	}
	return BatchStatusActive
}

// RefreshStatus re-derives the batch status and reports whether it changed
func (b *Batch) RefreshStatus(now time.Time, drugOnHand, reorderLevel int) bool {
	next := DeriveStatus(b.Status, b.ExpiryDate, now, drugOnHand, reorderLevel)
	if next == b.Status {
		return false
	}
	b.Status = next
	return true
}

// SellableQuantity sums on-hand quantity of the batches allocatable at now
func SellableQuantity(batches []Batch, now time.Time) int {
	total := 0
	for i := range batches {
		if batches[i].IsAllocatable(now) {
			total += batches[i].QuantityOnHand
		}
	}
	return total
}
