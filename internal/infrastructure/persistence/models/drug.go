package models

import (
	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// DrugModel is the persistence model for the catalog Drug entity
type DrugModel struct {
	BaseModel
	Name         string          `gorm:"type:varchar(200);not null;uniqueIndex"`
	GenericName  string          `gorm:"type:varchar(200)"`
	Manufacturer string          `gorm:"type:varchar(200)"`
	Price        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ReorderLevel int             `gorm:"not null;check:chk_drugs_reorder_level,reorder_level >= 0"`
	Active       bool            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (DrugModel) TableName() string {
	return "drugs"
}

// ToDomain converts the persistence model to a domain Drug
func (m *DrugModel) ToDomain() *catalog.Drug {
	return &catalog.Drug{
		BaseEntity:   m.BaseModel.Entity(),
		Name:         m.Name,
		GenericName:  m.GenericName,
		Manufacturer: m.Manufacturer,
		Price:        m.Price,
		ReorderLevel: m.ReorderLevel,
		Active:       m.Active,
	}
}

// FromDomain populates the persistence model from a domain Drug
func (m *DrugModel) FromDomain(d *catalog.Drug) {
	m.SetEntity(d.BaseEntity)
	m.Name = d.Name
	m.GenericName = d.GenericName
	m.Manufacturer = d.Manufacturer
	m.Price = d.Price
	m.ReorderLevel = d.ReorderLevel
	m.Active = d.Active
}

// DrugModelFromDomain creates a new persistence model from a domain Drug
func DrugModelFromDomain(d *catalog.Drug) *DrugModel {
	m := &DrugModel{}
	m.FromDomain(d)
	return m
}
