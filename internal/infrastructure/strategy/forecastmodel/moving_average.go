// Package forecastmodel provides demand forecast models.
package forecastmodel

import (
	"fmt"
	"math"

	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
)

// NameMovingAverage is the registry name of the simple moving average model
const NameMovingAverage = "moving_average"

// MovingAverageModel projects the mean daily quantity flat across the horizon
type MovingAverageModel struct {
	strategy.BaseStrategy
}

// NewMovingAverageModel creates a new simple moving average model
func NewMovingAverageModel() *MovingAverageModel {
	return &MovingAverageModel{
		BaseStrategy: strategy.NewBaseStrategy(
			NameMovingAverage,
			strategy.StrategyTypeForecast,
			"Simple moving average of daily units sold, projected flat over the horizon",
		),
	}
}

// Predict returns round(mean(series) * horizonDays) units
func (m *MovingAverageModel) Predict(series []int, horizonDays int) (forecast.Prediction, error) {
	if err := checkInput(series, horizonDays); err != nil {
		return forecast.Prediction{}, err
	}

	sum := 0
	for _, q := range series {
		sum += q
	}
	mean := float64(sum) / float64(len(series))

	return forecast.Prediction{
		Units:      project(mean, horizonDays),
		Confidence: forecast.Confidence(series),
	}, nil
}

func checkInput(series []int, horizonDays int) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: empty series", shared.ErrInsufficientHistory)
	}
	return forecast.ValidateHorizon(horizonDays)
}

func project(dailyRate float64, horizonDays int) int {
	units := math.Round(dailyRate * float64(horizonDays))
	if units < 0 {
		return 0
	}
	return int(units)
}
