package models

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the Sale aggregate root
type SaleModel struct {
	AggregateModel
	SaleNumber     string          `gorm:"type:varchar(30);not null;uniqueIndex"`
	CustomerID     *uuid.UUID      `gorm:"type:uuid;index"`
	PrescriptionID *uuid.UUID      `gorm:"type:uuid"`
	PaymentMethod  string          `gorm:"type:varchar(20);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Discount       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Tax            decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Change         decimal.Decimal `gorm:"column:change_due;type:decimal(18,2);not null;default:0"`
	BalanceDue     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Notes          string          `gorm:"type:text"`
	IdempotencyKey *string         `gorm:"type:varchar(100);uniqueIndex"`
	// Associations
	Lines []SaleLineItemModel `gorm:"foreignKey:SaleID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// SaleLineItemModel is the persistence model for a sale line
type SaleLineItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	DrugID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Drug      *DrugModel      `gorm:"foreignKey:DrugID;references:ID;constraint:OnDelete:RESTRICT"`
	DrugName  string          `gorm:"type:varchar(200);not null"`
	Position  int             `gorm:"not null"`
	Quantity  int             `gorm:"not null;check:chk_sale_line_items_quantity,quantity >= 1"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt time.Time       `gorm:"not null;index"`
	// Associations
	Allocations []SaleAllocationModel `gorm:"foreignKey:LineItemID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SaleLineItemModel) TableName() string {
	return "sale_line_items"
}

// SaleAllocationModel records units of a line drawn from one batch
type SaleAllocationModel struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey"`
	LineItemID uuid.UUID   `gorm:"type:uuid;not null;index"`
	BatchID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	Batch      *BatchModel `gorm:"foreignKey:BatchID;references:ID;constraint:OnDelete:RESTRICT"`
	LotNumber  string      `gorm:"type:varchar(50);not null"`
	Quantity   int         `gorm:"not null;check:chk_sale_allocations_quantity,quantity >= 1"`
}

// TableName returns the table name for GORM
func (SaleAllocationModel) TableName() string {
	return "sale_allocations"
}

// ToDomain converts the persistence model to a domain Sale. Lines are
// returned in their original order.
func (m *SaleModel) ToDomain() *sales.Sale {
	s := &sales.Sale{
		BaseAggregateRoot: m.Root(),
		SaleNumber:        m.SaleNumber,
		CustomerID:        m.CustomerID,
		PrescriptionID:    m.PrescriptionID,
		PaymentMethod:     sales.PaymentMethod(m.PaymentMethod),
		Subtotal:          m.Subtotal,
		Discount:          m.Discount,
		TaxRate:           m.TaxRate,
		Tax:               m.Tax,
		Total:             m.Total,
		AmountPaid:        m.AmountPaid,
		Change:            m.Change,
		BalanceDue:        m.BalanceDue,
		Notes:             m.Notes,
		Lines:             make([]sales.LineItem, len(m.Lines)),
	}
	if m.IdempotencyKey != nil {
		s.IdempotencyKey = *m.IdempotencyKey
	}
	for i, l := range m.Lines {
		line := sales.LineItem{
			ID:          l.ID,
			DrugID:      l.DrugID,
			DrugName:    l.DrugName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
			Allocations: make([]sales.BatchAllocation, len(l.Allocations)),
		}
		for j, a := range l.Allocations {
			line.Allocations[j] = sales.BatchAllocation{
				ID:        a.ID,
				BatchID:   a.BatchID,
				LotNumber: a.LotNumber,
				Quantity:  a.Quantity,
			}
		}
		s.Lines[i] = line
	}
	return s
}

// SaleModelFromDomain creates the sale model with its nested lines and
// allocations ready for a single Create.
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{
		SaleNumber:     s.SaleNumber,
		CustomerID:     s.CustomerID,
		PrescriptionID: s.PrescriptionID,
		PaymentMethod:  string(s.PaymentMethod),
		Subtotal:       s.Subtotal,
		Discount:       s.Discount,
		TaxRate:        s.TaxRate,
		Tax:            s.Tax,
		Total:          s.Total,
		AmountPaid:     s.AmountPaid,
		Change:         s.Change,
		BalanceDue:     s.BalanceDue,
		Notes:          s.Notes,
		Lines:          make([]SaleLineItemModel, len(s.Lines)),
	}
	m.SetRoot(s.BaseAggregateRoot)
	if s.IdempotencyKey != "" {
		key := s.IdempotencyKey
		m.IdempotencyKey = &key
	}
	for i, l := range s.Lines {
		line := SaleLineItemModel{
			ID:          l.ID,
			SaleID:      s.ID,
			DrugID:      l.DrugID,
			DrugName:    l.DrugName,
			Position:    i,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
			CreatedAt:   s.CreatedAt,
			Allocations: make([]SaleAllocationModel, len(l.Allocations)),
		}
		for j, a := range l.Allocations {
			line.Allocations[j] = SaleAllocationModel{
				ID:         a.ID,
				LineItemID: l.ID,
				BatchID:    a.BatchID,
				LotNumber:  a.LotNumber,
				Quantity:   a.Quantity,
			}
		}
		m.Lines[i] = line
	}
	return m
}
