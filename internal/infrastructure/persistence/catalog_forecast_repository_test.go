package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDrugRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	repo := NewGormDrugRepository(db)

	amox, err := catalog.NewDrug("Amoxicillin", decimal.RequireFromString("5.00"), 10)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, amox))
	ceti, err := catalog.NewDrug("Cetirizine", decimal.RequireFromString("1.20"), 5)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, ceti))

	got, err := repo.FindByID(ctx, amox.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amoxicillin", got.Name)
	assert.Equal(t, 10, got.ReorderLevel)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("5")))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrUnknownDrug)

	found, err := repo.FindByIDs(ctx, []uuid.UUID{amox.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, amox.ID)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{amox.ID, ceti.ID}, catalog.DrugIDs(active))

	count, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	exists, err := repo.ExistsByName(ctx, "Cetirizine")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGormForecastRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	repo := NewGormForecastRepository(db)
	drugID := testutil.InsertDrug(t, db, "Amoxicillin", "5.00", 10)

	_, err := repo.LatestByDrug(ctx, drugID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	series := []int{3, 4, 5}
	older, err := forecast.NewForecast(drugID, testutil.Today(), 7, "moving_average", testutil.DaysFromToday(-3), series,
		forecast.Prediction{Units: 28, Confidence: decimal.RequireFromString("81.65")})
	require.NoError(t, err)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))

	newer, err := forecast.NewForecast(drugID, testutil.Today(), 14, "weighted_moving_average", testutil.DaysFromToday(-3), series,
		forecast.Prediction{Units: 60, Confidence: decimal.RequireFromString("81.65")})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newer))

	got, err := repo.FindByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, series, got.HistoricalData)
	assert.Equal(t, 28, got.ForecastedUnits)
	assert.True(t, got.Confidence.Equal(decimal.RequireFromString("81.65")))

	latest, err := repo.LatestByDrug(ctx, drugID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	list, err := repo.ListByDrug(ctx, drugID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
