//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	appinventory "github.com/benedict431app/PharmacyOS/internal/application/inventory"
	salesapp "github.com/benedict431app/PharmacyOS/internal/application/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/strategy"
	"github.com/benedict431app/PharmacyOS/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledger struct {
	db        *gorm.DB
	sales     *salesapp.SaleService
	inventory *appinventory.InventoryService
}

func newLedger(t *testing.T, db *gorm.DB) *ledger {
	t.Helper()

	drugRepo := persistence.NewGormDrugRepository(db)
	batchRepo := persistence.NewGormBatchRepository(db, nil)
	saleRepo := persistence.NewGormSaleRepository(db)
	txScope := persistence.NewGormTransactionScope(db, nil)

	registry, err := strategy.NewRegistryWithDefaults()
	require.NoError(t, err)

	cfg := salesapp.DefaultConfig()
	cfg.MaxRetries = 3
	return &ledger{
		db:        db,
		sales:     salesapp.NewSaleService(saleRepo, drugRepo, batchRepo, txScope, registry, cfg, zap.NewNop()),
		inventory: appinventory.NewInventoryService(batchRepo, drugRepo, txScope, zap.NewNop()),
	}
}

func cashSale(drugID uuid.UUID, qty int) salesapp.PostSaleRequest {
	return salesapp.PostSaleRequest{
		PaymentMethod: "cash",
		Lines:         []salesapp.SaleLineRequest{{DrugID: drugID, Quantity: qty}},
	}
}

func soldUnits(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Raw("SELECT COALESCE(SUM(quantity), 0) FROM sale_allocations").Scan(&n).Error)
	return n
}

func TestConcurrentSales_NeverOversell(t *testing.T) {
	tdb := NewSharedTestDB(t)
	l := newLedger(t, tdb.DB)

	drugID := testutil.InsertDrug(t, tdb.DB, "Amoxicillin 500mg", "12.50", 10)
	first := testutil.InsertBatch(t, tdb.DB, drugID, "AMX-01", 40, testutil.DaysFromToday(30), "")
	second := testutil.InsertBatch(t, tdb.DB, drugID, "AMX-02", 60, testutil.DaysFromToday(300), "")

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.sales.PostSale(context.Background(), cashSale(drugID, 7))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	for _, err := range failures {
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	}
	assert.LessOrEqual(t, succeeded, 100/7)
	assert.Positive(t, succeeded)

	remaining := testutil.BatchQuantity(t, tdb.DB, first) + testutil.BatchQuantity(t, tdb.DB, second)
	assert.GreaterOrEqual(t, remaining, 0)
	assert.Equal(t, 100-succeeded*7, remaining, "every posted unit left exactly one batch")
	assert.Equal(t, int64(succeeded*7), soldUnits(t, tdb.DB))
	assert.Equal(t, int64(succeeded), testutil.CountRows(t, tdb.DB, &models.SaleModel{}))
}

func TestConcurrentSales_SameIdempotencyKeyPostsOnce(t *testing.T) {
	tdb := NewSharedTestDB(t)
	l := newLedger(t, tdb.DB)

	drugID := testutil.InsertDrug(t, tdb.DB, "Paracetamol 500mg", "2.00", 5)
	batchID := testutil.InsertBatch(t, tdb.DB, drugID, "PCM-01", 50, testutil.DaysFromToday(90), "")

	req := cashSale(drugID, 3)
	req.IdempotencyKey = "till-4:000118"

	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uuid.UUID]int)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := l.sales.PostSale(context.Background(), req)
			if err != nil {
				return
			}
			mu.Lock()
			ids[resp.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "every successful retry returns the same sale")
	assert.Equal(t, int64(1), testutil.CountRows(t, tdb.DB, &models.SaleModel{}))
	assert.Equal(t, 47, testutil.BatchQuantity(t, tdb.DB, batchID))
}

func TestRecallRacingSales(t *testing.T) {
	tdb := NewSharedTestDB(t)
	l := newLedger(t, tdb.DB)

	drugID := testutil.InsertDrug(t, tdb.DB, "Ibuprofen 200mg", "4.00", 5)
	batchID := testutil.InsertBatch(t, tdb.DB, drugID, "IBU-01", 30, testutil.DaysFromToday(120), "")

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.sales.PostSale(context.Background(), cashSale(drugID, 2))
			results <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := l.inventory.Recall(context.Background(), batchID, appinventory.RecallRequest{Reason: "supplier notice"})
		assert.NoError(t, err)
	}()
	wg.Wait()
	close(results)

	posted := 0
	for err := range results {
		if err == nil {
			posted++
			continue
		}
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock), "unexpected error: %v", err)
	}

	assert.Equal(t, "recalled", testutil.BatchStatus(t, tdb.DB, batchID))
	assert.Equal(t, 30-posted*2, testutil.BatchQuantity(t, tdb.DB, batchID), "sales before the recall still decrement")
	assert.Equal(t, int64(posted*2), soldUnits(t, tdb.DB))
}

func TestSaleTotalsRoundTrip(t *testing.T) {
	tdb := NewSharedTestDB(t)
	l := newLedger(t, tdb.DB)

	drugID := testutil.InsertDrug(t, tdb.DB, "Cetirizine 10mg", "3.35", 5)
	testutil.InsertBatch(t, tdb.DB, drugID, "CTZ-01", 4, testutil.DaysFromToday(20), "")
	testutil.InsertBatch(t, tdb.DB, drugID, "CTZ-02", 10, testutil.DaysFromToday(200), "")

	resp, err := l.sales.PostSale(context.Background(), cashSale(drugID, 6))
	require.NoError(t, err)
	require.Len(t, resp.Lines, 1)
	require.Len(t, resp.Lines[0].Allocations, 2)
	assert.Equal(t, "CTZ-01", resp.Lines[0].Allocations[0].LotNumber)
	assert.Equal(t, 4, resp.Lines[0].Allocations[0].Quantity)

	stored, err := l.sales.GetSale(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20.10").Equal(stored.Total))
	assert.Equal(t, resp.SaleNumber, stored.SaleNumber)
}
