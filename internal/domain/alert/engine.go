package alert

import (
	"fmt"
	"sort"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/google/uuid"
)

// Rules configures the alert thresholds
type Rules struct {
	// ExpiryWindowDays is how far ahead expiring batches are reported
	ExpiryWindowDays int
	// CriticalDays escalates expiring batches to critical at or below this many days
	CriticalDays int
}

// DefaultRules returns the standard pharmacy thresholds
func DefaultRules() Rules {
	return Rules{ExpiryWindowDays: 30, CriticalDays: 7}
}

// Snapshot is the state alerts are derived from
type Snapshot struct {
	Drugs   []catalog.Drug
	Batches []inventory.Batch
}

// Evaluate derives all alerts for the snapshot at now. It does not modify
// the snapshot, and equal inputs always yield equal, equally ordered output.
func Evaluate(snap Snapshot, now time.Time, rules Rules) []Alert {
	byDrug := make(map[uuid.UUID][]inventory.Batch, len(snap.Drugs))
	for _, b := range snap.Batches {
		byDrug[b.DrugID] = append(byDrug[b.DrugID], b)
	}
	names := make(map[uuid.UUID]string, len(snap.Drugs))

	alerts := make([]Alert, 0)
	for _, d := range snap.Drugs {
		names[d.ID] = d.Name
		if !d.Active {
			continue
		}
		onHand := inventory.SellableQuantity(byDrug[d.ID], now)
		switch {
		case onHand == 0:
			alerts = append(alerts, Alert{
				Kind:         KindOutOfStock,
				Severity:     SeverityCritical,
				DrugID:       d.ID,
				DrugName:     d.Name,
				ReorderLevel: d.ReorderLevel,
				Message:      fmt.Sprintf("%s is out of stock", d.Name),
			})
		case d.IsLowStock(onHand):
			alerts = append(alerts, Alert{
				Kind:         KindLowStock,
				Severity:     SeverityWarning,
				DrugID:       d.ID,
				DrugName:     d.Name,
				Quantity:     onHand,
				ReorderLevel: d.ReorderLevel,
				Message:      fmt.Sprintf("%s is low on stock: %d left (reorder level %d)", d.Name, onHand, d.ReorderLevel),
			})
		}
	}

	for i := range snap.Batches {
		b := &snap.Batches[i]
		if b.QuantityOnHand <= 0 || b.Status == inventory.BatchStatusRecalled {
			continue
		}
		if a, ok := expiryAlert(b, names[b.DrugID], now, rules); ok {
			alerts = append(alerts, a)
		}
	}

	sortAlerts(alerts)
	return alerts
}

func expiryAlert(b *inventory.Batch, drugName string, now time.Time, rules Rules) (Alert, bool) {
	days := b.DaysUntilExpiry(now)
	batchID := b.ID
	a := Alert{
		DrugID:          b.DrugID,
		DrugName:        drugName,
		BatchID:         &batchID,
		LotNumber:       b.LotNumber,
		Quantity:        b.QuantityOnHand,
		DaysUntilExpiry: &days,
	}

	switch {
	case b.Status == inventory.BatchStatusExpired || b.IsExpiredAt(now):
		a.Kind = KindExpired
		a.Severity = SeverityCritical
		a.Message = fmt.Sprintf("%s lot %s expired with %d units on hand", drugName, b.LotNumber, b.QuantityOnHand)
	case days <= rules.ExpiryWindowDays:
		a.Kind = KindExpiringSoon
		a.Severity = SeverityWarning
		if days <= rules.CriticalDays {
			a.Severity = SeverityCritical
		}
		a.Message = fmt.Sprintf("%s lot %s expires in %d days", drugName, b.LotNumber, days)
	default:
		return Alert{}, false
	}
	return a, true
}

func sortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.Kind.rank() != b.Kind.rank() {
			return a.Kind.rank() < b.Kind.rank()
		}
		if a.DrugName != b.DrugName {
			return a.DrugName < b.DrugName
		}
		if a.LotNumber != b.LotNumber {
			return a.LotNumber < b.LotNumber
		}
		return a.DrugID.String() < b.DrugID.String()
	})
}

// Count tallies alerts by kind
func Count(alerts []Alert) map[Kind]int {
	counts := make(map[Kind]int, 4)
	for _, a := range alerts {
		counts[a.Kind]++
	}
	return counts
}
