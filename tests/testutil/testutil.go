// Package testutil provides shared helpers for PharmacyOS tests: mock and
// in-memory databases, catalog and batch fixtures and event recording.
package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockDB wraps a GORM database with sqlmock for testing.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a sqlmock-backed database speaking the PostgreSQL
// dialect. The caller is responsible for calling Close() when done.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open GORM connection")

	return &MockDB{
		DB:    gormDB,
		Mock:  mock,
		SqlDB: mockDB,
	}
}

// Close closes the mock database connection.
func (m *MockDB) Close() error {
	return m.SqlDB.Close()
}

// ExpectationsWereMet verifies that all expectations were met.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	err := m.Mock.ExpectationsWereMet()
	require.NoError(t, err, "Unmet database expectations")
}

// NewSQLiteDB opens a private in-memory SQLite database with the full
// schema. A single connection keeps every query on the same database and
// serialises concurrent writers the way the SQLite deployment does.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "Failed to open SQLite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...), "Failed to create schema")
	return db
}

// Today returns the current UTC calendar date
func Today() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysFromToday returns the UTC date n days from today, negative for the past
func DaysFromToday(n int) time.Time {
	return Today().AddDate(0, 0, n)
}

// InsertDrug stores an active drug and returns its id
func InsertDrug(t *testing.T, db *gorm.DB, name string, price string, reorderLevel int) uuid.UUID {
	t.Helper()

	now := time.Now().UTC()
	m := &models.DrugModel{
		BaseModel:    models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:         name,
		Price:        decimal.RequireFromString(price),
		ReorderLevel: reorderLevel,
		Active:       true,
	}
	require.NoError(t, db.Create(m).Error, "Failed to insert drug %s", name)
	return m.ID
}

// InsertBatch stores an active batch and returns its id. Status is left
// as given so tests can set up stale or recalled rows directly.
func InsertBatch(t *testing.T, db *gorm.DB, drugID uuid.UUID, lot string, qty int, expiry time.Time, status string) uuid.UUID {
	t.Helper()

	now := time.Now().UTC()
	if status == "" {
		status = "active"
	}
	m := &models.BatchModel{
		AggregateModel: models.AggregateModel{
			BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			Version:   1,
		},
		DrugID:         drugID,
		LotNumber:      lot,
		QuantityOnHand: qty,
		ExpiryDate:     expiry,
		PurchaseDate:   DaysFromToday(-60),
		CostPrice:      decimal.NewFromInt(1),
		Status:         status,
	}
	require.NoError(t, db.Create(m).Error, "Failed to insert batch %s", lot)
	return m.ID
}

// BatchQuantity reads a batch's stored quantity
func BatchQuantity(t *testing.T, db *gorm.DB, batchID uuid.UUID) int {
	t.Helper()
	var m models.BatchModel
	require.NoError(t, db.First(&m, "id = ?", batchID).Error)
	return m.QuantityOnHand
}

// BatchStatus reads a batch's stored status
func BatchStatus(t *testing.T, db *gorm.DB, batchID uuid.UUID) string {
	t.Helper()
	var m models.BatchModel
	require.NoError(t, db.First(&m, "id = ?", batchID).Error)
	return m.Status
}

// InsertSale stores a cash sale of qty units drawn from one batch, dated at.
// Batch quantities are left untouched; it is meant for sales history.
func InsertSale(t *testing.T, db *gorm.DB, drugID, batchID uuid.UUID, qty int, unitPrice string, at time.Time) uuid.UUID {
	t.Helper()

	var drug models.DrugModel
	require.NoError(t, db.First(&drug, "id = ?", drugID).Error)
	s, err := sales.NewSale(sales.Draft{
		PaymentMethod: sales.PaymentMethodCash,
		Lines: []sales.LineDraft{{
			DrugID:      drugID,
			DrugName:    drug.Name,
			Quantity:    qty,
			UnitPrice:   decimal.RequireFromString(unitPrice),
			Allocations: []inventory.Allocation{{BatchID: batchID, LotNumber: "history", Quantity: qty}},
		}},
	}, decimal.Zero)
	require.NoError(t, err)
	s.CreatedAt = at.UTC()
	s.UpdatedAt = at.UTC()
	require.NoError(t, db.Create(models.SaleModelFromDomain(s)).Error, "Failed to insert sale")
	return s.ID
}

// CountRows counts the rows of a model's table
func CountRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
