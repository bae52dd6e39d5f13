// Package forecast models demand forecasts produced from daily sales history.
package forecast

import (
	"fmt"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// MaxHorizonDays bounds how far ahead a forecast may project
	MaxHorizonDays = 365
	// DefaultHorizonDays is used when the caller does not choose a horizon
	DefaultHorizonDays = 30
)

// Forecast is an immutable demand estimate for one drug. Re-running the
// engine produces a new record.
type Forecast struct {
	shared.BaseEntity
	DrugID          uuid.UUID
	ForecastDate    time.Time
	ForecastedUnits int
	Confidence      decimal.Decimal
	Model           string
	HorizonDays     int
	WindowStart     time.Time
	HistoricalData  []int
}

// NewForecast records a model prediction over series
func NewForecast(
	drugID uuid.UUID,
	forecastDate time.Time,
	horizonDays int,
	model string,
	windowStart time.Time,
	series []int,
	p Prediction,
) (*Forecast, error) {
	if err := ValidateHorizon(horizonDays); err != nil {
		return nil, err
	}
	if p.Units < 0 {
		return nil, fmt.Errorf("%w: forecasted units cannot be negative", shared.ErrValidation)
	}
	history := make([]int, len(series))
	copy(history, series)
	return &Forecast{
		BaseEntity:      shared.NewBaseEntity(),
		DrugID:          drugID,
		ForecastDate:    inventory.DateOf(forecastDate),
		ForecastedUnits: p.Units,
		Confidence:      p.Confidence,
		Model:           model,
		HorizonDays:     horizonDays,
		WindowStart:     inventory.DateOf(windowStart),
		HistoricalData:  history,
	}, nil
}

// ValidateHorizon checks that a horizon is within 1..MaxHorizonDays
func ValidateHorizon(days int) error {
	if days < 1 || days > MaxHorizonDays {
		return fmt.Errorf("%w: horizon must be between 1 and %d days", shared.ErrValidation, MaxHorizonDays)
	}
	return nil
}
