package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
	"github.com/google/uuid"
)

// Allocation is a quantity drawn from one batch to fill a sale line
type Allocation struct {
	BatchID    uuid.UUID
	LotNumber  string
	ExpiryDate time.Time
	Quantity   int
}

// AllocationStrategy decides the order in which batches are drawn from.
// Allocate then fills greedily in that order.
type AllocationStrategy interface {
	strategy.Strategy
	// Order returns the batches in draw order. It must not modify the input.
	Order(batches []Batch) []Batch
}

// Allocate fills requested units of drugID from batches in the order given,
// taking min(remaining, batch quantity) from each. When the batches cannot
// cover the request it returns an *shared.InsufficientStockError and no
// allocations. Batches of other drugs and empty batches are skipped.
func Allocate(drugID uuid.UUID, requested int, batches []Batch) ([]Allocation, error) {
	if requested < 1 {
		return nil, fmt.Errorf("%w: requested quantity must be at least 1", shared.ErrValidation)
	}

	available := 0
	for i := range batches {
		if batches[i].DrugID == drugID && batches[i].QuantityOnHand > 0 {
			available += batches[i].QuantityOnHand
		}
	}
	if available < requested {
		return nil, shared.NewInsufficientStockError(drugID, requested, available)
	}

	remaining := requested
	allocations := make([]Allocation, 0, 2)
	for i := range batches {
		if remaining == 0 {
			break
		}
		b := &batches[i]
		if b.DrugID != drugID || b.QuantityOnHand <= 0 {
			continue
		}
		take := min(remaining, b.QuantityOnHand)
		allocations = append(allocations, Allocation{
			BatchID:    b.ID,
			LotNumber:  b.LotNumber,
			ExpiryDate: b.ExpiryDate,
			Quantity:   take,
		})
		remaining -= take
	}
	return allocations, nil
}

// AllocateWith orders batches with s before allocating
func AllocateWith(s AllocationStrategy, drugID uuid.UUID, requested int, batches []Batch) ([]Allocation, error) {
	return Allocate(drugID, requested, s.Order(batches))
}

// AllocatedQuantity sums the quantities of allocations
func AllocatedQuantity(allocations []Allocation) int {
	total := 0
	for _, a := range allocations {
		total += a.Quantity
	}
	return total
}

// SortByExpiry returns a copy of batches ordered by expiry date ascending,
// ties broken by lot number.
func SortByExpiry(batches []Batch) []Batch {
	sorted := make([]Batch, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool {
		ei, ej := DateOf(sorted[i].ExpiryDate), DateOf(sorted[j].ExpiryDate)
		if !ei.Equal(ej) {
			return ei.Before(ej)
		}
		return sorted[i].LotNumber < sorted[j].LotNumber
	})
	return sorted
}
