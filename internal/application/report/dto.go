package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPeriodDays = 30
	defaultTrendDays  = 7
	defaultTopN       = 10
)

// PeriodFilter selects the trailing number of days a report covers
type PeriodFilter struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// TopSellingFilter selects the period and size of a top-selling ranking
type TopSellingFilter struct {
	Days  int `form:"days" binding:"omitempty,min=1,max=365"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// DashboardResponse is the pharmacy overview at a point in time
type DashboardResponse struct {
	TotalDrugs       int64           `json:"total_drugs"`
	TodaySales       int64           `json:"today_sales"`
	TodayRevenue     decimal.Decimal `json:"today_revenue"`
	TodayUnits       int64           `json:"today_units"`
	LowStockDrugs    int             `json:"low_stock_drugs"`
	OutOfStockDrugs  int             `json:"out_of_stock_drugs"`
	ExpiringBatches  int64           `json:"expiring_batches"`
	ExpiryWindowDays int             `json:"expiry_window_days"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// DrugRankingResponse is one row of the top-selling ranking
type DrugRankingResponse struct {
	Rank     int             `json:"rank"`
	DrugID   uuid.UUID       `json:"drug_id"`
	DrugName string          `json:"drug_name"`
	Units    int64           `json:"units"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// RevenueSummaryResponse totals sales over a period
type RevenueSummaryResponse struct {
	PeriodStart             time.Time       `json:"period_start"`
	PeriodEnd               time.Time       `json:"period_end"`
	Revenue                 decimal.Decimal `json:"revenue"`
	Transactions            int64           `json:"transactions"`
	UnitsSold               int64           `json:"units_sold"`
	AverageTransactionValue decimal.Decimal `json:"average_transaction_value"`
}

// TrendPointResponse is one day of the sales trend
type TrendPointResponse struct {
	Date         string          `json:"date"`
	Transactions int64           `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

func periodDays(days int) int {
	if days <= 0 {
		return defaultPeriodDays
	}
	return days
}
