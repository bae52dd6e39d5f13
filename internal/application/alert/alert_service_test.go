package alert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/benedict431app/PharmacyOS/internal/domain/alert"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence"
	"github.com/benedict431app/PharmacyOS/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type countingMetrics struct {
	alerts  map[alert.Kind]int
	expired int
}

func (m *countingMetrics) RecordAlerts(_ context.Context, counts map[alert.Kind]int) {
	m.alerts = counts
}

func (m *countingMetrics) RecordBatchesExpired(_ context.Context, n int) {
	m.expired += n
}

func newAlertService(t *testing.T) (*AlertService, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	service := NewAlertService(
		persistence.NewGormDrugRepository(db),
		persistence.NewGormBatchRepository(db, nil),
		alert.DefaultRules(),
		zaptest.NewLogger(t),
	)
	return service, db
}

func TestAlertService_Evaluate(t *testing.T) {
	service, db := newAlertService(t)
	metrics := &countingMetrics{}
	service.SetMetrics(metrics)

	testutil.InsertDrug(t, db, "Adrenaline", "12.00", 5)
	low := testutil.InsertDrug(t, db, "Bisoprolol", "0.60", 20)
	healthy := testutil.InsertDrug(t, db, "Citalopram", "0.45", 10)

	testutil.InsertBatch(t, db, low, "B-1", 8, testutil.DaysFromToday(200), "low_stock")
	testutil.InsertBatch(t, db, healthy, "C-SOON", 30, testutil.DaysFromToday(3), "")
	testutil.InsertBatch(t, db, healthy, "C-LATER", 30, testutil.DaysFromToday(20), "")
	testutil.InsertBatch(t, db, healthy, "C-GONE", 4, testutil.DaysFromToday(-1), "active")
	testutil.InsertBatch(t, db, healthy, "C-RECALLED", 9, testutil.DaysFromToday(2), "recalled")

	result, err := service.Evaluate(context.Background(), AlertFilter{})
	require.NoError(t, err)

	kinds := make([]string, 0, len(result.Alerts))
	for _, a := range result.Alerts {
		kinds = append(kinds, string(a.Kind)+":"+string(a.Severity)+":"+a.DrugName+":"+a.LotNumber)
	}
	assert.Equal(t, []string{
		"expired:critical:Citalopram:C-GONE",
		"out_of_stock:critical:Adrenaline:",
		"expiring_soon:critical:Citalopram:C-SOON",
		"expiring_soon:warning:Citalopram:C-LATER",
		"low_stock:warning:Bisoprolol:",
	}, kinds)
	assert.Equal(t, 1, result.Counts[alert.KindOutOfStock])
	assert.Equal(t, result.Counts, metrics.alerts)

	t.Run("repeatable", func(t *testing.T) {
		again, err := service.Evaluate(context.Background(), AlertFilter{})
		require.NoError(t, err)
		assert.Equal(t, result.Alerts, again.Alerts)
	})

	t.Run("filtered", func(t *testing.T) {
		critical, err := service.Evaluate(context.Background(), AlertFilter{Severity: "critical"})
		require.NoError(t, err)
		assert.Len(t, critical.Alerts, 3)

		soon, err := service.Evaluate(context.Background(), AlertFilter{Kind: "expiring_soon"})
		require.NoError(t, err)
		assert.Len(t, soon.Alerts, 2)
		assert.Equal(t, 2, soon.Counts[alert.KindExpiringSoon])
	})
}

func TestAlertService_EvaluateDrugs(t *testing.T) {
	service, db := newAlertService(t)
	low := testutil.InsertDrug(t, db, "Digoxin", "0.20", 10)
	other := testutil.InsertDrug(t, db, "Enalapril", "0.30", 10)
	testutil.InsertBatch(t, db, low, "D-1", 3, testutil.DaysFromToday(100), "")

	alerts, err := service.EvaluateDrugs(context.Background(), []uuid.UUID{low, uuid.New()})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.KindLowStock, alerts[0].Kind)
	assert.Equal(t, low, alerts[0].DrugID)
	assert.NotEqual(t, other, alerts[0].DrugID)
}

func TestAlertService_SweepExpired(t *testing.T) {
	service, db := newAlertService(t)
	publisher := testutil.NewEventRecorder()
	metrics := &countingMetrics{}
	service.SetEventPublisher(publisher)
	service.SetMetrics(metrics)

	drug := testutil.InsertDrug(t, db, "Furosemide", "0.15", 0)
	gone := testutil.InsertBatch(t, db, drug, "F-OLD", 12, testutil.DaysFromToday(-5), "active")
	lowGone := testutil.InsertBatch(t, db, drug, "F-LOW", 1, testutil.DaysFromToday(-1), "low_stock")
	today := testutil.InsertBatch(t, db, drug, "F-TODAY", 7, testutil.Today(), "active")
	recalled := testutil.InsertBatch(t, db, drug, "F-RECALL", 3, testutil.DaysFromToday(-9), "recalled")

	stats, err := service.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalExpired)
	assert.Equal(t, 2, stats.Marked)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, metrics.expired)

	assert.Equal(t, "expired", testutil.BatchStatus(t, db, gone))
	assert.Equal(t, "expired", testutil.BatchStatus(t, db, lowGone))
	assert.Equal(t, "active", testutil.BatchStatus(t, db, today))
	assert.Equal(t, "recalled", testutil.BatchStatus(t, db, recalled))
	assert.Equal(t, 12, testutil.BatchQuantity(t, db, gone))

	require.Equal(t, 2, publisher.Count())
	for _, e := range publisher.Events() {
		assert.Equal(t, inventory.EventTypeBatchExpired, e.EventType())
	}

	again, err := service.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.TotalExpired)
}

// ==================== SalePostedHandler ====================

type stubEvaluator struct {
	alerts []alert.Alert
	err    error
	asked  []uuid.UUID
}

func (s *stubEvaluator) EvaluateDrugs(_ context.Context, ids []uuid.UUID) ([]alert.Alert, error) {
	s.asked = ids
	return s.alerts, s.err
}

type MockNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
	err    error
}

func (n *MockNotifier) SendAlert(_ context.Context, a alert.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

func postedEvent(drugs ...uuid.UUID) *sales.SalePostedEvent {
	sale := &sales.Sale{BaseAggregateRoot: shared.NewBaseAggregateRoot(), SaleNumber: "SALE-20260101-AAAAAAAA", Total: decimal.NewFromInt(1)}
	for _, d := range drugs {
		sale.Lines = append(sale.Lines, sales.LineItem{DrugID: d, Quantity: 1})
	}
	return sales.NewSalePostedEvent(sale)
}

func TestSalePostedHandler_Handle(t *testing.T) {
	drugA, drugB := uuid.New(), uuid.New()
	evaluator := &stubEvaluator{alerts: []alert.Alert{
		{Kind: alert.KindOutOfStock, Severity: alert.SeverityCritical, DrugID: drugA},
		{Kind: alert.KindExpiringSoon, Severity: alert.SeverityWarning, DrugID: drugB},
		{Kind: alert.KindLowStock, Severity: alert.SeverityWarning, DrugID: drugB, Quantity: 2},
	}}
	notifier := &MockNotifier{err: errors.New("smtp down")}
	handler := NewSalePostedHandler(evaluator, zaptest.NewLogger(t)).WithNotifier(notifier)

	assert.Equal(t, []string{sales.EventTypeSalePosted}, handler.EventTypes())

	require.NoError(t, handler.Handle(context.Background(), postedEvent(drugA, drugB, drugA)))
	assert.Equal(t, []uuid.UUID{drugA, drugB}, evaluator.asked)
	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, alert.KindOutOfStock, notifier.alerts[0].Kind)
	assert.Equal(t, alert.KindLowStock, notifier.alerts[1].Kind)
}

func TestSalePostedHandler_Errors(t *testing.T) {
	handler := NewSalePostedHandler(&stubEvaluator{err: errors.New("db gone")}, nil)
	err := handler.Handle(context.Background(), postedEvent(uuid.New()))
	assert.ErrorContains(t, err, "db gone")

	other := inventory.NewBatchExpiredEvent(&inventory.Batch{BaseAggregateRoot: shared.NewBaseAggregateRoot()})
	assert.Error(t, handler.Handle(context.Background(), other))
}
