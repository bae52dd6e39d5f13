package allocation

import (
	"sort"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
)

// NameFIFO is the registry name of the FIFO strategy
const NameFIFO = "fifo"

// FIFOStrategy draws from the oldest purchase first. Ties fall back to
// expiry date then lot number, so it still prefers short-dated stock
// among lots received the same day.
type FIFOStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOStrategy creates a new FIFO allocation strategy
func NewFIFOStrategy() *FIFOStrategy {
	return &FIFOStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			NameFIFO,
			strategy.StrategyTypeAllocation,
			"First In First Out - draws from the earliest purchased batch first",
		),
	}
}

// Order returns batches in FIFO draw order
func (s *FIFOStrategy) Order(batches []inventory.Batch) []inventory.Batch {
	sorted := inventory.SortByExpiry(batches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return inventory.DateOf(sorted[i].PurchaseDate).Before(inventory.DateOf(sorted[j].PurchaseDate))
	})
	return sorted
}
