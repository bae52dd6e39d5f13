package testutil

import (
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	assert.NotNil(t, mockDB.SqlDB)
	mockDB.ExpectationsWereMet(t)
}

func TestNewSQLiteDB_Fixtures(t *testing.T) {
	db := NewSQLiteDB(t)

	drugID := InsertDrug(t, db, "Amoxicillin 500mg", "12.50", 10)
	batchID := InsertBatch(t, db, drugID, "LOT-1", 40, DaysFromToday(90), "")

	assert.Equal(t, 40, BatchQuantity(t, db, batchID))
	assert.Equal(t, "active", BatchStatus(t, db, batchID))
	assert.Equal(t, int64(1), CountRows(t, db, &models.DrugModel{}))
	assert.Equal(t, int64(1), CountRows(t, db, &models.BatchModel{}))
}

func TestNewSQLiteDB_Isolated(t *testing.T) {
	a := NewSQLiteDB(t)
	b := NewSQLiteDB(t)

	InsertDrug(t, a, "Paracetamol", "1.00", 5)
	assert.Equal(t, int64(0), CountRows(t, b, &models.DrugModel{}))
}

func TestDaysFromToday(t *testing.T) {
	assert.Equal(t, Today().AddDate(0, 0, 3), DaysFromToday(3))
	assert.Zero(t, Today().Hour())
	assert.Equal(t, time.UTC, Today().Location())
}
