package sales

import (
	"context"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleRepository persists sales together with their lines and allocations
type SaleRepository interface {
	// Create inserts the sale, its line items and batch allocations
	Create(ctx context.Context, sale *Sale) error

	// FindByID returns a sale with lines and allocations, shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByIdempotencyKey returns the sale posted under key, shared.ErrNotFound if none
	FindByIdempotencyKey(ctx context.Context, key string) (*Sale, error)

	// List returns sales newest first, without allocations
	List(ctx context.Context, filter shared.Filter) ([]Sale, int64, error)
}

// DailyQuantity is the number of units of a drug sold on one day
type DailyQuantity struct {
	Day      time.Time
	Quantity int
}

// DailyRevenue is the number of sales and their total on one day
type DailyRevenue struct {
	Day          time.Time
	Transactions int64
	Revenue      decimal.Decimal
}

// DrugSales summarises sales of one drug over a period
type DrugSales struct {
	DrugID   uuid.UUID
	DrugName string
	Units    int64
	Revenue  decimal.Decimal
}

// Summary summarises all sales over a period
type Summary struct {
	Transactions int64
	Units        int64
	Revenue      decimal.Decimal
}

// HistoryReader reads aggregated sales history for forecasting and reports
type HistoryReader interface {
	// DailyQuantities returns units sold per day for a drug in [from, to),
	// only days with sales are returned, ordered by day
	DailyQuantities(ctx context.Context, drugID uuid.UUID, from, to time.Time) ([]DailyQuantity, error)

	// TopSelling returns the best selling drugs by units since the given time
	TopSelling(ctx context.Context, since time.Time, limit int) ([]DrugSales, error)

	// Summarize totals sales in [from, to)
	Summarize(ctx context.Context, from, to time.Time) (Summary, error)

	// DailyRevenue returns sale count and revenue per day in [from, to),
	// only days with sales are returned, ordered by day
	DailyRevenue(ctx context.Context, from, to time.Time) ([]DailyRevenue, error)
}
