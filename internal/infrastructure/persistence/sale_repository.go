package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSaleRepository implements sales.SaleRepository and sales.HistoryReader using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// Create inserts the sale with its lines and allocations in one statement
// group. Run it inside the transaction that decremented the batches.
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	err := r.db.WithContext(ctx).Create(models.SaleModelFromDomain(sale)).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && sale.IdempotencyKey != "" {
		return fmt.Errorf("%w: sale with idempotency key %q", shared.ErrAlreadyExists, sale.IdempotencyKey)
	}
	return translateError(err)
}

func (r *GormSaleRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Lines.Allocations")
}

// FindByID returns a sale with lines and allocations
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	var m models.SaleModel
	if err := r.withLines(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIdempotencyKey returns the sale posted under key
func (r *GormSaleRepository) FindByIdempotencyKey(ctx context.Context, key string) (*sales.Sale, error) {
	var m models.SaleModel
	if err := r.withLines(ctx).First(&m, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// List returns a page of sales with their lines, newest first by default
func (r *GormSaleRepository) List(ctx context.Context, filter shared.Filter) ([]sales.Sale, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.SaleModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column := ValidateSortField(filter.OrderBy, SaleSortFields, "created_at")
	dir := ValidateSortOrder(filter.OrderDir)
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = shared.DefaultFilter().PageSize
	}

	var ms []models.SaleModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order(column + " " + dir).
		Order("id ASC").
		Offset(filter.Offset()).
		Limit(pageSize).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	out := make([]sales.Sale, len(ms))
	for i := range ms {
		out[i] = *ms[i].ToDomain()
	}
	return out, total, nil
}

type dailyRow struct {
	Day      string
	Quantity int64
}

// dayExpr renders the UTC calendar day of a timestamp column as YYYY-MM-DD
// for the connected dialect.
func dayExpr(db *gorm.DB, column string) string {
	if db.Dialector.Name() == DriverPostgres {
		return "TO_CHAR(" + column + " AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}
	return "strftime('%Y-%m-%d', " + column + ")"
}

func parseDay(raw string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sales day %q: %w", raw, err)
	}
	return d, nil
}

// DailyQuantities returns units sold per day for a drug in [from, to)
func (r *GormSaleRepository) DailyQuantities(ctx context.Context, drugID uuid.UUID, from, to time.Time) ([]sales.DailyQuantity, error) {
	day := dayExpr(r.db, "sale_line_items.created_at")
	var rows []dailyRow
	if err := r.db.WithContext(ctx).Model(&models.SaleLineItemModel{}).
		Select(day+" AS day, SUM(quantity) AS quantity").
		Where("drug_id = ? AND created_at >= ? AND created_at < ?", drugID, from.UTC(), to.UTC()).
		Group(day).
		Order("day ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]sales.DailyQuantity, 0, len(rows))
	for _, row := range rows {
		d, err := parseDay(row.Day)
		if err != nil {
			return nil, err
		}
		out = append(out, sales.DailyQuantity{Day: d, Quantity: int(row.Quantity)})
	}
	return out, nil
}

type revenueRow struct {
	Day          string
	Transactions int64
	Revenue      decimal.Decimal
}

// DailyRevenue returns sale count and revenue per day in [from, to)
func (r *GormSaleRepository) DailyRevenue(ctx context.Context, from, to time.Time) ([]sales.DailyRevenue, error) {
	day := dayExpr(r.db, "sales.created_at")
	var rows []revenueRow
	if err := r.db.WithContext(ctx).Model(&models.SaleModel{}).
		Select(day+" AS day, COUNT(*) AS transactions, COALESCE(SUM(total), 0) AS revenue").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Group(day).
		Order("day ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]sales.DailyRevenue, 0, len(rows))
	for _, row := range rows {
		d, err := parseDay(row.Day)
		if err != nil {
			return nil, err
		}
		out = append(out, sales.DailyRevenue{Day: d, Transactions: row.Transactions, Revenue: row.Revenue})
	}
	return out, nil
}

type drugSalesRow struct {
	DrugID   uuid.UUID
	DrugName string
	Units    int64
	Revenue  decimal.Decimal
}

// TopSelling returns the best selling drugs by units since the given time
func (r *GormSaleRepository) TopSelling(ctx context.Context, since time.Time, limit int) ([]sales.DrugSales, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []drugSalesRow
	if err := r.db.WithContext(ctx).Model(&models.SaleLineItemModel{}).
		Select("drug_id, MAX(drug_name) AS drug_name, SUM(quantity) AS units, SUM(line_total) AS revenue").
		Where("created_at >= ?", since.UTC()).
		Group("drug_id").
		Order("units DESC").
		Order("drug_name ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]sales.DrugSales, len(rows))
	for i, row := range rows {
		out[i] = sales.DrugSales(row)
	}
	return out, nil
}

// Summarize totals sales in [from, to)
func (r *GormSaleRepository) Summarize(ctx context.Context, from, to time.Time) (sales.Summary, error) {
	var head struct {
		Transactions int64
		Revenue      decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&models.SaleModel{}).
		Select("COUNT(*) AS transactions, COALESCE(SUM(total), 0) AS revenue").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Scan(&head).Error; err != nil {
		return sales.Summary{}, err
	}

	var units int64
	if err := r.db.WithContext(ctx).Model(&models.SaleLineItemModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Scan(&units).Error; err != nil {
		return sales.Summary{}, err
	}

	return sales.Summary{
		Transactions: head.Transactions,
		Units:        units,
		Revenue:      head.Revenue,
	}, nil
}

// Ensure GormSaleRepository implements the sales interfaces
var (
	_ sales.SaleRepository = (*GormSaleRepository)(nil)
	_ sales.HistoryReader  = (*GormSaleRepository)(nil)
)
