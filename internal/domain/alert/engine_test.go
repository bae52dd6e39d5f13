package alert

import (
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func drug(t *testing.T, name string, reorder int) catalog.Drug {
	t.Helper()
	d, err := catalog.NewDrug(name, decimal.NewFromInt(3), reorder)
	require.NoError(t, err)
	return *d
}

func batch(drugID uuid.UUID, lot string, qty int, expiry time.Time, status inventory.BatchStatus) inventory.Batch {
	return inventory.Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DrugID:            drugID,
		LotNumber:         lot,
		QuantityOnHand:    qty,
		ExpiryDate:        inventory.DateOf(expiry),
		Status:            status,
	}
}

func TestEvaluate_StockLevels(t *testing.T) {
	healthy := drug(t, "Amoxicillin", 10)
	low := drug(t, "Ibuprofen", 10)
	empty := drug(t, "Paracetamol", 10)
	onlyRecalled := drug(t, "Cetirizine", 5)

	snap := Snapshot{
		Drugs: []catalog.Drug{healthy, low, empty, onlyRecalled},
		Batches: []inventory.Batch{
			batch(healthy.ID, "H1", 50, now.AddDate(1, 0, 0), inventory.BatchStatusActive),
			batch(low.ID, "A", 0, now.AddDate(0, 3, 0), inventory.BatchStatusLowStock),
			batch(low.ID, "B", 7, now.AddDate(0, 8, 0), inventory.BatchStatusLowStock),
			batch(onlyRecalled.ID, "R", 40, now.AddDate(1, 0, 0), inventory.BatchStatusRecalled),
		},
	}

	alerts := Evaluate(snap, now, DefaultRules())
	counts := Count(alerts)
	assert.Equal(t, 2, counts[KindOutOfStock])
	assert.Equal(t, 1, counts[KindLowStock])
	assert.Equal(t, 0, counts[KindExpiringSoon])

	for _, a := range alerts {
		if a.Kind == KindLowStock {
			assert.Equal(t, low.ID, a.DrugID)
			assert.Equal(t, 7, a.Quantity)
			assert.Equal(t, SeverityWarning, a.Severity)
		}
		if a.Kind == KindOutOfStock {
			assert.Equal(t, SeverityCritical, a.Severity)
			assert.Contains(t, []uuid.UUID{empty.ID, onlyRecalled.ID}, a.DrugID)
		}
	}
}

func TestEvaluate_Expiry(t *testing.T) {
	d := drug(t, "Insulin", 0)
	snap := Snapshot{
		Drugs: []catalog.Drug{d},
		Batches: []inventory.Batch{
			batch(d.ID, "EXPIRED", 4, now.AddDate(0, 0, -2), inventory.BatchStatusActive),
			batch(d.ID, "SOON", 6, now.AddDate(0, 0, 5), inventory.BatchStatusActive),
			batch(d.ID, "MONTH", 6, now.AddDate(0, 0, 30), inventory.BatchStatusActive),
			batch(d.ID, "LATER", 6, now.AddDate(0, 0, 31), inventory.BatchStatusActive),
			batch(d.ID, "EMPTY", 0, now.AddDate(0, 0, 1), inventory.BatchStatusActive),
		},
	}

	alerts := Evaluate(snap, now, DefaultRules())
	lots := map[string]Alert{}
	for _, a := range alerts {
		if a.BatchID != nil {
			lots[a.LotNumber] = a
		}
	}

	require.Contains(t, lots, "EXPIRED")
	assert.Equal(t, KindExpired, lots["EXPIRED"].Kind)
	assert.Equal(t, SeverityCritical, lots["EXPIRED"].Severity)

	require.Contains(t, lots, "SOON")
	assert.Equal(t, KindExpiringSoon, lots["SOON"].Kind)
	assert.Equal(t, SeverityCritical, lots["SOON"].Severity)
	assert.Equal(t, 5, *lots["SOON"].DaysUntilExpiry)

	require.Contains(t, lots, "MONTH")
	assert.Equal(t, SeverityWarning, lots["MONTH"].Severity)

	assert.NotContains(t, lots, "LATER")
	assert.NotContains(t, lots, "EMPTY")

	assert.Equal(t, KindExpired, alerts[0].Kind, "critical expired alerts sort first")
}

func TestEvaluate_Idempotent(t *testing.T) {
	a := drug(t, "A", 10)
	b := drug(t, "B", 10)
	snap := Snapshot{
		Drugs: []catalog.Drug{a, b},
		Batches: []inventory.Batch{
			batch(a.ID, "1", 3, now.AddDate(0, 0, 3), inventory.BatchStatusActive),
			batch(b.ID, "2", 0, now.AddDate(0, 0, 3), inventory.BatchStatusActive),
		},
	}

	first := Evaluate(snap, now, DefaultRules())
	second := Evaluate(snap, now, DefaultRules())
	assert.Equal(t, first, second)
}

func TestEvaluate_LowStockAfterSale(t *testing.T) {
	d := drug(t, "D", 10)
	snap := Snapshot{
		Drugs: []catalog.Drug{d},
		Batches: []inventory.Batch{
			batch(d.ID, "A", 0, now.AddDate(0, 2, 0), inventory.BatchStatusActive),
			batch(d.ID, "B", 7, now.AddDate(0, 7, 0), inventory.BatchStatusActive),
		},
	}
	alerts := Evaluate(snap, now, DefaultRules())
	require.Len(t, alerts, 1)
	assert.Equal(t, KindLowStock, alerts[0].Kind)
	assert.Equal(t, d.ID, alerts[0].DrugID)
}

func TestEvaluate_InactiveDrugSkipsStockAlerts(t *testing.T) {
	d := drug(t, "Discontinued", 10)
	d.Active = false
	alerts := Evaluate(Snapshot{Drugs: []catalog.Drug{d}}, now, DefaultRules())
	assert.Empty(t, alerts)
}
