package sales

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Sale DTOs ====================

// PostSaleRequest represents a point-of-sale checkout
type PostSaleRequest struct {
	CustomerID     *uuid.UUID        `json:"customer_id"`
	PrescriptionID *uuid.UUID        `json:"prescription_id"`
	PaymentMethod  string            `json:"payment_method" binding:"required,payment_method"`
	Lines          []SaleLineRequest `json:"lines"`
	Discount       *decimal.Decimal  `json:"discount"`
	AmountPaid     *decimal.Decimal  `json:"amount_paid"`
	Notes          string            `json:"notes" binding:"max=500"`
	// IdempotencyKey comes from the Idempotency-Key header
	IdempotencyKey string `json:"-"`
}

// SaleLineRequest is one drug entry of a checkout. UnitPrice defaults to the
// catalog price.
type SaleLineRequest struct {
	DrugID    uuid.UUID        `json:"drug_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// SaleListFilter represents paging options for the sale list
type SaleListFilter struct {
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset   int    `form:"offset" binding:"omitempty,min=0"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// AllocationResponse is the quantity a line drew from one batch
type AllocationResponse struct {
	BatchID   uuid.UUID `json:"batch_id"`
	LotNumber string    `json:"lot_number"`
	Quantity  int       `json:"quantity"`
}

// SaleLineResponse represents a sale line in API responses
type SaleLineResponse struct {
	ID          uuid.UUID            `json:"id"`
	DrugID      uuid.UUID            `json:"drug_id"`
	DrugName    string               `json:"drug_name"`
	Quantity    int                  `json:"quantity"`
	UnitPrice   decimal.Decimal      `json:"unit_price"`
	LineTotal   decimal.Decimal      `json:"line_total"`
	Allocations []AllocationResponse `json:"allocations,omitempty"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID             uuid.UUID          `json:"id"`
	SaleNumber     string             `json:"sale_number"`
	CustomerID     *uuid.UUID         `json:"customer_id,omitempty"`
	PrescriptionID *uuid.UUID         `json:"prescription_id,omitempty"`
	PaymentMethod  string             `json:"payment_method"`
	Lines          []SaleLineResponse `json:"lines"`
	TotalUnits     int                `json:"total_units"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	Discount       decimal.Decimal    `json:"discount"`
	TaxRate        decimal.Decimal    `json:"tax_rate"`
	Tax            decimal.Decimal    `json:"tax"`
	Total          decimal.Decimal    `json:"total"`
	AmountPaid     decimal.Decimal    `json:"amount_paid"`
	Change         decimal.Decimal    `json:"change"`
	BalanceDue     decimal.Decimal    `json:"balance_due"`
	Notes          string             `json:"notes,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	// Replayed is set when an idempotent retry returned an earlier sale
	Replayed bool `json:"replayed,omitempty"`
}

// ToSaleResponse converts a domain Sale to SaleResponse
func ToSaleResponse(s *sales.Sale) SaleResponse {
	lines := make([]SaleLineResponse, 0, len(s.Lines))
	for _, l := range s.Lines {
		var allocations []AllocationResponse
		for _, a := range l.Allocations {
			allocations = append(allocations, AllocationResponse{
				BatchID:   a.BatchID,
				LotNumber: a.LotNumber,
				Quantity:  a.Quantity,
			})
		}
		lines = append(lines, SaleLineResponse{
			ID:          l.ID,
			DrugID:      l.DrugID,
			DrugName:    l.DrugName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
			Allocations: allocations,
		})
	}

	return SaleResponse{
		ID:             s.ID,
		SaleNumber:     s.SaleNumber,
		CustomerID:     s.CustomerID,
		PrescriptionID: s.PrescriptionID,
		PaymentMethod:  string(s.PaymentMethod),
		Lines:          lines,
		TotalUnits:     s.TotalUnits(),
		Subtotal:       s.Subtotal,
		Discount:       s.Discount,
		TaxRate:        s.TaxRate,
		Tax:            s.Tax,
		Total:          s.Total,
		AmountPaid:     s.AmountPaid,
		Change:         s.Change,
		BalanceDue:     s.BalanceDue,
		Notes:          s.Notes,
		IdempotencyKey: s.IdempotencyKey,
		CreatedAt:      s.CreatedAt,
	}
}

// ToSaleResponses converts a slice of domain Sales
func ToSaleResponses(list []sales.Sale) []SaleResponse {
	responses := make([]SaleResponse, len(list))
	for i := range list {
		responses[i] = ToSaleResponse(&list[i])
	}
	return responses
}
