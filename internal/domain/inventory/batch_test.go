package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBatch(t *testing.T, drugID uuid.UUID, lot string, qty int, expiry time.Time) *Batch {
	t.Helper()
	b, err := NewBatch(drugID, lot, qty, expiry, expiry.AddDate(-1, 0, 0), decimal.NewFromFloat(1.25))
	require.NoError(t, err)
	return b
}

func TestNewBatch(t *testing.T) {
	drugID := uuid.New()
	expiry := time.Now().AddDate(0, 6, 0)

	t.Run("valid batch", func(t *testing.T) {
		b, err := NewBatch(drugID, " LOT-001 ", 50, expiry, time.Now(), decimal.NewFromInt(2))
		require.NoError(t, err)
		assert.Equal(t, "LOT-001", b.LotNumber)
		assert.Equal(t, 50, b.QuantityOnHand)
		assert.Equal(t, BatchStatusActive, b.Status)
		assert.Equal(t, 1, b.GetVersion())
		assert.Equal(t, DateOf(expiry), b.ExpiryDate)

		events := b.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeBatchReceived, events[0].EventType())
	})

	tests := []struct {
		name   string
		drugID uuid.UUID
		lot    string
		qty    int
		expiry time.Time
		cost   decimal.Decimal
	}{
		{"nil drug", uuid.Nil, "LOT", 1, expiry, decimal.Zero},
		{"empty lot", drugID, "  ", 1, expiry, decimal.Zero},
		{"zero quantity", drugID, "LOT", 0, expiry, decimal.Zero},
		{"missing expiry", drugID, "LOT", 1, time.Time{}, decimal.Zero},
		{"negative cost", drugID, "LOT", 1, expiry, decimal.NewFromInt(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBatch(tt.drugID, tt.lot, tt.qty, tt.expiry, time.Now(), tt.cost)
			assert.True(t, errors.Is(err, shared.ErrValidation))
		})
	}

	t.Run("expiry before purchase", func(t *testing.T) {
		_, err := NewBatch(drugID, "LOT", 1, time.Now().AddDate(0, 0, -2), time.Now(), decimal.Zero)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestBatch_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	b := &Batch{ExpiryDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Status: BatchStatusActive, QuantityOnHand: 4}

	assert.False(t, b.IsExpiredAt(now), "sellable through its expiry date")
	assert.True(t, b.IsExpiredAt(now.AddDate(0, 0, 1)))
	assert.Equal(t, 0, b.DaysUntilExpiry(now))
	assert.Equal(t, 30, b.DaysUntilExpiry(now.AddDate(0, 0, -30)))
	assert.Equal(t, -2, b.DaysUntilExpiry(now.AddDate(0, 0, 2)))

	assert.True(t, b.ExpiresWithin(now.AddDate(0, 0, -30), 30))
	assert.False(t, b.ExpiresWithin(now.AddDate(0, 0, -31), 30))
	assert.False(t, b.ExpiresWithin(now.AddDate(0, 0, 1), 30))

	assert.True(t, b.IsAllocatable(now))
	assert.False(t, b.IsAllocatable(now.AddDate(0, 0, 1)))
}

func TestBatch_Decrement(t *testing.T) {
	drugID := uuid.New()

	t.Run("reduces quantity and bumps version", func(t *testing.T) {
		b := newTestBatch(t, drugID, "A", 5, time.Now().AddDate(0, 1, 0))
		require.NoError(t, b.Decrement(5))
		assert.Equal(t, 0, b.QuantityOnHand)
		assert.Equal(t, 2, b.GetVersion())
		assert.Equal(t, BatchStatusActive, b.Status, "empty batch is not auto-expired")
	})

	t.Run("insufficient stock carries quantities", func(t *testing.T) {
		b := newTestBatch(t, drugID, "A", 5, time.Now().AddDate(0, 1, 0))
		err := b.Decrement(6)
		require.True(t, errors.Is(err, shared.ErrInsufficientStock))

		var stockErr *shared.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, 6, stockErr.Requested)
		assert.Equal(t, 5, stockErr.Available)
		assert.Equal(t, 5, b.QuantityOnHand)
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		b := newTestBatch(t, drugID, "A", 5, time.Now().AddDate(0, 1, 0))
		assert.True(t, errors.Is(b.Decrement(0), shared.ErrValidation))
	})

	t.Run("recalled batch cannot be drawn", func(t *testing.T) {
		b := newTestBatch(t, drugID, "A", 5, time.Now().AddDate(0, 1, 0))
		require.NoError(t, b.Recall("contamination"))
		assert.True(t, errors.Is(b.Decrement(1), shared.ErrInvalidState))
	})
}

func TestBatch_IncrementAndRecall(t *testing.T) {
	b := newTestBatch(t, uuid.New(), "A", 5, time.Now().AddDate(0, 1, 0))
	b.ClearDomainEvents()

	require.NoError(t, b.Increment(10))
	assert.Equal(t, 15, b.QuantityOnHand)
	require.Len(t, b.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeBatchRestocked, b.GetDomainEvents()[0].EventType())

	assert.True(t, errors.Is(b.Increment(0), shared.ErrValidation))

	require.NoError(t, b.Recall("supplier notice"))
	assert.Equal(t, BatchStatusRecalled, b.Status)
	assert.True(t, errors.Is(b.Recall("again"), shared.ErrInvalidState))
	assert.True(t, errors.Is(b.Increment(1), shared.ErrInvalidState))
}

func TestBatch_MarkExpired(t *testing.T) {
	now := time.Now().UTC()
	b := &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ExpiryDate:        DateOf(now.AddDate(0, 0, -1)),
		Status:            BatchStatusLowStock,
		QuantityOnHand:    3,
	}

	assert.True(t, b.MarkExpired(now))
	assert.Equal(t, BatchStatusExpired, b.Status)
	assert.False(t, b.MarkExpired(now), "second call is a no-op")

	fresh := &Batch{ExpiryDate: DateOf(now.AddDate(0, 0, 5)), Status: BatchStatusActive}
	assert.False(t, fresh.MarkExpired(now))

	recalled := &Batch{ExpiryDate: DateOf(now.AddDate(0, 0, -5)), Status: BatchStatusRecalled}
	assert.False(t, recalled.MarkExpired(now))
	assert.Equal(t, BatchStatusRecalled, recalled.Status)
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 2, 0)
	past := now.AddDate(0, 0, -1)

	assert.Equal(t, BatchStatusRecalled, DeriveStatus(BatchStatusRecalled, future, now, 100, 10))
	assert.Equal(t, BatchStatusExpired, DeriveStatus(BatchStatusActive, past, now, 100, 10))
	assert.Equal(t, BatchStatusLowStock, DeriveStatus(BatchStatusActive, future, now, 10, 10))
	assert.Equal(t, BatchStatusLowStock, DeriveStatus(BatchStatusActive, future, now, 0, 10))
	assert.Equal(t, BatchStatusActive, DeriveStatus(BatchStatusLowStock, future, now, 11, 10))
}

func TestSellableQuantity(t *testing.T) {
	now := time.Now().UTC()
	batches := []Batch{
		{QuantityOnHand: 5, ExpiryDate: now.AddDate(0, 1, 0), Status: BatchStatusActive},
		{QuantityOnHand: 7, ExpiryDate: now.AddDate(0, 1, 0), Status: BatchStatusLowStock},
		{QuantityOnHand: 9, ExpiryDate: now.AddDate(0, 1, 0), Status: BatchStatusRecalled},
		{QuantityOnHand: 11, ExpiryDate: now.AddDate(0, 0, -3), Status: BatchStatusActive},
	}
	assert.Equal(t, 12, SellableQuantity(batches, now))
}
