// Package allocation provides batch ordering policies for sale allocation.
package allocation

import (
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
)

// NameFEFO is the registry name of the FEFO strategy
const NameFEFO = "fefo"

// FEFOStrategy implements First Expired First Out.
// Batches are drawn by expiry date, earliest first, ties by lot number.
type FEFOStrategy struct {
	strategy.BaseStrategy
}

// NewFEFOStrategy creates a new FEFO allocation strategy
func NewFEFOStrategy() *FEFOStrategy {
	return &FEFOStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			NameFEFO,
			strategy.StrategyTypeAllocation,
			"First Expired First Out - draws from the earliest expiring batch first",
		),
	}
}

// Order returns batches in FEFO draw order
func (s *FEFOStrategy) Order(batches []inventory.Batch) []inventory.Batch {
	return inventory.SortByExpiry(batches)
}
