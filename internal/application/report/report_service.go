package report

import (
	"context"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportService provides dashboard and sales reports
type ReportService struct {
	history          sales.HistoryReader
	drugReader       catalog.DrugReader
	batchReader      inventory.BatchReader
	expiryWindowDays int
	now              func() time.Time
}

// NewReportService creates a new ReportService. expiryWindowDays is the
// lookahead used to count expiring batches on the dashboard.
func NewReportService(
	history sales.HistoryReader,
	drugReader catalog.DrugReader,
	batchReader inventory.BatchReader,
	expiryWindowDays int,
) *ReportService {
	if expiryWindowDays <= 0 {
		expiryWindowDays = 30
	}
	return &ReportService{
		history:          history,
		drugReader:       drugReader,
		batchReader:      batchReader,
		expiryWindowDays: expiryWindowDays,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// DashboardStats returns the pharmacy overview as of now
func (s *ReportService) DashboardStats(ctx context.Context) (*DashboardResponse, error) {
	now := s.now()
	today := inventory.DateOf(now)

	totalDrugs, err := s.drugReader.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.history.Summarize(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	low, out, err := s.stockLevels(ctx, now)
	if err != nil {
		return nil, err
	}

	expiring, err := s.batchReader.CountExpiringBetween(ctx, today, today.AddDate(0, 0, s.expiryWindowDays))
	if err != nil {
		return nil, err
	}

	return &DashboardResponse{
		TotalDrugs:       totalDrugs,
		TodaySales:       summary.Transactions,
		TodayRevenue:     summary.Revenue,
		TodayUnits:       summary.Units,
		LowStockDrugs:    low,
		OutOfStockDrugs:  out,
		ExpiringBatches:  expiring,
		ExpiryWindowDays: s.expiryWindowDays,
		GeneratedAt:      now,
	}, nil
}

// stockLevels counts active drugs at or below their reorder level, split
// into those with some sellable stock and those with none
func (s *ReportService) stockLevels(ctx context.Context, now time.Time) (low, out int, err error) {
	drugs, err := s.drugReader.ListActive(ctx)
	if err != nil {
		return 0, 0, err
	}
	batches, err := s.batchReader.ListAll(ctx)
	if err != nil {
		return 0, 0, err
	}

	byDrug := make(map[uuid.UUID][]inventory.Batch, len(drugs))
	for _, b := range batches {
		byDrug[b.DrugID] = append(byDrug[b.DrugID], b)
	}
	for i := range drugs {
		onHand := inventory.SellableQuantity(byDrug[drugs[i].ID], now)
		switch {
		case onHand == 0:
			out++
		case drugs[i].IsLowStock(onHand):
			low++
		}
	}
	return low, out, nil
}

// TopSellingDrugs ranks drugs by units sold over the trailing period
func (s *ReportService) TopSellingDrugs(ctx context.Context, filter TopSellingFilter) ([]DrugRankingResponse, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTopN
	}
	since := inventory.DateOf(s.now()).AddDate(0, 0, -(periodDays(filter.Days) - 1))

	rows, err := s.history.TopSelling(ctx, since, limit)
	if err != nil {
		return nil, err
	}

	out := make([]DrugRankingResponse, len(rows))
	for i, r := range rows {
		out[i] = DrugRankingResponse{
			Rank:     i + 1,
			DrugID:   r.DrugID,
			DrugName: r.DrugName,
			Units:    r.Units,
			Revenue:  r.Revenue,
		}
	}
	return out, nil
}

// RevenueSummary totals revenue over the trailing period, today included
func (s *ReportService) RevenueSummary(ctx context.Context, filter PeriodFilter) (*RevenueSummaryResponse, error) {
	today := inventory.DateOf(s.now())
	from := today.AddDate(0, 0, -(periodDays(filter.Days) - 1))
	to := today.AddDate(0, 0, 1)

	summary, err := s.history.Summarize(ctx, from, to)
	if err != nil {
		return nil, err
	}

	avg := decimal.Zero
	if summary.Transactions > 0 {
		avg = summary.Revenue.Div(decimal.NewFromInt(summary.Transactions)).Round(2)
	}
	return &RevenueSummaryResponse{
		PeriodStart:             from,
		PeriodEnd:               to,
		Revenue:                 summary.Revenue,
		Transactions:            summary.Transactions,
		UnitsSold:               summary.Units,
		AverageTransactionValue: avg,
	}, nil
}

// SalesTrend returns revenue per day over the trailing period, oldest day
// first. Days without sales are reported as zero so the series has one point
// per day. The period defaults to a week.
func (s *ReportService) SalesTrend(ctx context.Context, filter PeriodFilter) ([]TrendPointResponse, error) {
	days := filter.Days
	if days <= 0 {
		days = defaultTrendDays
	}
	today := inventory.DateOf(s.now())
	from := today.AddDate(0, 0, -(days - 1))

	rows, err := s.history.DailyRevenue(ctx, from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]sales.DailyRevenue, len(rows))
	for _, r := range rows {
		byDay[r.Day.Format(time.DateOnly)] = r
	}

	out := make([]TrendPointResponse, days)
	for i := range out {
		key := from.AddDate(0, 0, i).Format(time.DateOnly)
		point := TrendPointResponse{Date: key, Revenue: decimal.Zero}
		if r, ok := byDay[key]; ok {
			point.Transactions = r.Transactions
			point.Revenue = r.Revenue
		}
		out[i] = point
	}
	return out, nil
}
