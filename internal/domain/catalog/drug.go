package catalog

import (
	"strings"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReorderLevel is used when catalog management does not set one
const DefaultReorderLevel = 10

// Drug is the catalog view of a medicine. The inventory core reads drugs
// for pricing and reorder thresholds but never changes them.
type Drug struct {
	shared.BaseEntity
	Name         string
	GenericName  string
	Manufacturer string
	Price        decimal.Decimal
	ReorderLevel int
	Active       bool
}

// NewDrug creates an active drug. It is used by catalog seeding and tests.
func NewDrug(name string, price decimal.Decimal, reorderLevel int) (*Drug, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Drug name cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Drug price cannot be negative")
	}
	if reorderLevel < 0 {
		return nil, shared.NewDomainError("INVALID_REORDER_LEVEL", "Reorder level cannot be negative")
	}
	return &Drug{
		BaseEntity:   shared.NewBaseEntity(),
		Name:         name,
		Price:        price,
		ReorderLevel: reorderLevel,
		Active:       true,
	}, nil
}

// IsLowStock reports whether the given total on-hand quantity is at or
// below the drug's reorder level.
func (d *Drug) IsLowStock(totalOnHand int) bool {
	return totalOnHand <= d.ReorderLevel
}

// DrugIDs returns the ids of the given drugs in order
func DrugIDs(drugs []Drug) []uuid.UUID {
	ids := make([]uuid.UUID, len(drugs))
	for i := range drugs {
		ids[i] = drugs[i].ID
	}
	return ids
}
