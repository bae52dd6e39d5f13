package sales

import (
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeSale = "Sale"

// EventTypeSalePosted is published after a sale commits
const EventTypeSalePosted = "SalePosted"

// SalePostedLine is the per-drug quantity sold
type SalePostedLine struct {
	DrugID   uuid.UUID `json:"drug_id"`
	Quantity int       `json:"quantity"`
}

// SalePostedEvent is raised when a sale and its stock decrements commit
type SalePostedEvent struct {
	shared.BaseDomainEvent
	SaleID        uuid.UUID        `json:"sale_id"`
	SaleNumber    string           `json:"sale_number"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	Total         decimal.Decimal  `json:"total"`
	Lines         []SalePostedLine `json:"lines"`
}

// NewSalePostedEvent creates a new SalePostedEvent
func NewSalePostedEvent(s *Sale) *SalePostedEvent {
	lines := make([]SalePostedLine, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, SalePostedLine{DrugID: l.DrugID, Quantity: l.Quantity})
	}
	return &SalePostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalePosted, AggregateTypeSale, s.ID),
		SaleID:          s.ID,
		SaleNumber:      s.SaleNumber,
		PaymentMethod:   s.PaymentMethod,
		Total:           s.Total,
		Lines:           lines,
	}
}

// DrugIDs returns the distinct drugs sold
func (e *SalePostedEvent) DrugIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(e.Lines))
	ids := make([]uuid.UUID, 0, len(e.Lines))
	for _, l := range e.Lines {
		if !seen[l.DrugID] {
			seen[l.DrugID] = true
			ids = append(ids, l.DrugID)
		}
	}
	return ids
}
