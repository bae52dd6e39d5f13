package allocation

import (
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lot(drugID uuid.UUID, number string, qty int, purchased, expiry time.Time) inventory.Batch {
	return inventory.Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DrugID:            drugID,
		LotNumber:         number,
		QuantityOnHand:    qty,
		PurchaseDate:      purchased,
		ExpiryDate:        expiry,
		Status:            inventory.BatchStatusActive,
	}
}

func TestFEFOStrategy(t *testing.T) {
	s := NewFEFOStrategy()
	assert.Equal(t, "fefo", s.Name())
	assert.Equal(t, strategy.StrategyTypeAllocation, s.Type())

	drugID := uuid.New()
	now := time.Now()
	batches := []inventory.Batch{
		lot(drugID, "B003", 30, now.AddDate(0, 0, -25), now.AddDate(0, 0, 60)),
		lot(drugID, "B001", 50, now.AddDate(0, 0, -18), now.AddDate(0, 0, 10)),
		lot(drugID, "B002", 40, now.AddDate(0, 0, -8), now.AddDate(0, 0, 30)),
	}

	allocs, err := inventory.AllocateWith(s, drugID, 70, batches)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, "B001", allocs[0].LotNumber)
	assert.Equal(t, 50, allocs[0].Quantity)
	assert.Equal(t, "B002", allocs[1].LotNumber)
	assert.Equal(t, 20, allocs[1].Quantity)
}

func TestFIFOStrategy(t *testing.T) {
	s := NewFIFOStrategy()
	drugID := uuid.New()
	now := time.Now()
	batches := []inventory.Batch{
		lot(drugID, "NEW", 10, now.AddDate(0, 0, -1), now.AddDate(0, 0, 5)),
		lot(drugID, "OLD", 10, now.AddDate(0, 0, -30), now.AddDate(0, 3, 0)),
	}

	ordered := s.Order(batches)
	assert.Equal(t, "OLD", ordered[0].LotNumber)
	assert.Equal(t, "NEW", batches[0].LotNumber, "input order untouched")
}
