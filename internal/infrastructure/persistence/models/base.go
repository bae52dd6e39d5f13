package models

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel holds the columns every ledger table shares.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Entity returns the row identity with timestamps normalized to UTC.
func (m *BaseModel) Entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()}
}

func (m *BaseModel) SetEntity(e shared.BaseEntity) {
	m.ID, m.CreatedAt, m.UpdatedAt = e.ID, e.CreatedAt, e.UpdatedAt
}

// AggregateModel adds the optimistic-lock version of an aggregate root.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

func (m *AggregateModel) SetRoot(a shared.BaseAggregateRoot) {
	m.SetEntity(a.BaseEntity)
	m.Version = a.Version
}

// Root rebuilds the aggregate header. Pending events are never persisted.
func (m *AggregateModel) Root() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{BaseEntity: m.Entity(), Version: m.Version}
}

// All lists the models in foreign-key order, for AutoMigrate in tests and
// SQLite development databases.
func All() []any {
	return []any{
		&DrugModel{},
		&BatchModel{},
		&SaleModel{},
		&SaleLineItemModel{},
		&SaleAllocationModel{},
		&ForecastModel{},
	}
}
