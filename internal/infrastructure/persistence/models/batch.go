package models

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchModel is the persistence model for the Batch aggregate root
type BatchModel struct {
	AggregateModel
	DrugID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_batches_drug_lot,priority:1;index:idx_batches_drug_status_expiry,priority:1"`
	Drug           *DrugModel      `gorm:"foreignKey:DrugID;references:ID;constraint:OnDelete:RESTRICT"`
	LotNumber      string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_batches_drug_lot,priority:2"`
	QuantityOnHand int             `gorm:"not null;default:0;check:chk_batches_quantity_on_hand,quantity_on_hand >= 0"`
	ExpiryDate     time.Time       `gorm:"type:date;not null;index:idx_batches_drug_status_expiry,priority:3"`
	PurchaseDate   time.Time       `gorm:"type:date;not null"`
	CostPrice      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Status         string          `gorm:"type:varchar(20);not null;index:idx_batches_drug_status_expiry,priority:2"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch
func (m *BatchModel) ToDomain() *inventory.Batch {
	return &inventory.Batch{
		BaseAggregateRoot: m.Root(),
		DrugID:            m.DrugID,
		LotNumber:         m.LotNumber,
		QuantityOnHand:    m.QuantityOnHand,
		ExpiryDate:        inventory.DateOf(m.ExpiryDate),
		PurchaseDate:      inventory.DateOf(m.PurchaseDate),
		CostPrice:         m.CostPrice,
		Status:            inventory.BatchStatus(m.Status),
	}
}

// FromDomain populates the persistence model from a domain Batch
func (m *BatchModel) FromDomain(b *inventory.Batch) {
	m.SetRoot(b.BaseAggregateRoot)
	m.DrugID = b.DrugID
	m.LotNumber = b.LotNumber
	m.QuantityOnHand = b.QuantityOnHand
	m.ExpiryDate = inventory.DateOf(b.ExpiryDate)
	m.PurchaseDate = inventory.DateOf(b.PurchaseDate)
	m.CostPrice = b.CostPrice
	m.Status = string(b.Status)
}

// BatchModelFromDomain creates a new persistence model from a domain Batch
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{}
	m.FromDomain(b)
	return m
}

// BatchesToDomain converts a slice of models
func BatchesToDomain(ms []BatchModel) []inventory.Batch {
	out := make([]inventory.Batch, len(ms))
	for i := range ms {
		out[i] = *ms[i].ToDomain()
	}
	return out
}
