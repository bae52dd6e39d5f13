// Package alert derives stock and expiry alerts from a batch snapshot.
// Alerts are not persisted; every evaluation regenerates them.
package alert

import (
	"github.com/google/uuid"
)

// Kind is the category of an alert
type Kind string

const (
	KindOutOfStock   Kind = "out_of_stock"
	KindLowStock     Kind = "low_stock"
	KindExpiringSoon Kind = "expiring_soon"
	KindExpired      Kind = "expired"
)

// Severity ranks how urgently an alert needs attention
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

func (s Severity) rank() int {
	if s == SeverityCritical {
		return 0
	}
	return 1
}

func (k Kind) rank() int {
	switch k {
	case KindExpired:
		return 0
	case KindOutOfStock:
		return 1
	case KindExpiringSoon:
		return 2
	default:
		return 3
	}
}

// Alert is a single derived warning about a drug or one of its batches
type Alert struct {
	Kind            Kind       `json:"kind"`
	Severity        Severity   `json:"severity"`
	DrugID          uuid.UUID  `json:"drug_id"`
	DrugName        string     `json:"drug_name"`
	BatchID         *uuid.UUID `json:"batch_id,omitempty"`
	LotNumber       string     `json:"lot_number,omitempty"`
	Quantity        int        `json:"quantity"`
	ReorderLevel    int        `json:"reorder_level,omitempty"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty"`
	Message         string     `json:"message"`
}
