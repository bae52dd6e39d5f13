package forecast

import (
	"math"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// Prediction is the output every model must produce
type Prediction struct {
	Units      int
	Confidence decimal.Decimal
}

// Model turns a daily quantity series into a prediction over a horizon.
// Implementations must be deterministic.
type Model interface {
	strategy.Strategy
	Predict(series []int, horizonDays int) (Prediction, error)
}

// DailySeries expands sparse per-day totals into a dense series of days
// entries starting at from. Days without sales are zero.
func DailySeries(points []sales.DailyQuantity, from time.Time, days int) []int {
	series := make([]int, days)
	start := inventory.DateOf(from)
	for _, p := range points {
		idx := int(inventory.DateOf(p.Day).Sub(start).Hours() / 24)
		if idx >= 0 && idx < days {
			series[idx] += p.Quantity
		}
	}
	return series
}

// NonZeroDays counts the days with any sales
func NonZeroDays(series []int) int {
	n := 0
	for _, q := range series {
		if q > 0 {
			n++
		}
	}
	return n
}

// Confidence maps series variability to a 0..100 score: 100 / (1 + cv),
// where cv is the coefficient of variation. Higher variance means lower
// confidence. An all-zero series scores 0.
func Confidence(series []int) decimal.Decimal {
	if len(series) == 0 {
		return decimal.Zero
	}
	mean := 0.0
	for _, q := range series {
		mean += float64(q)
	}
	mean /= float64(len(series))
	if mean <= 0 {
		return decimal.Zero
	}

	variance := 0.0
	for _, q := range series {
		d := float64(q) - mean
		variance += d * d
	}
	variance /= float64(len(series))

	cv := math.Sqrt(variance) / mean
	score := 100 / (1 + cv)
	score = math.Max(0, math.Min(100, score))
	return decimal.NewFromFloat(score).Round(2)
}
