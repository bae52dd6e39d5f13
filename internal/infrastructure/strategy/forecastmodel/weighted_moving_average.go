package forecastmodel

import (
	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
)

// NameWeightedMovingAverage is the registry name of the weighted model
const NameWeightedMovingAverage = "weighted_moving_average"

// WeightedMovingAverageModel weights day i (oldest first) by i+1, so recent
// demand counts more than older demand.
type WeightedMovingAverageModel struct {
	strategy.BaseStrategy
}

// NewWeightedMovingAverageModel creates a new linearly weighted moving average model
func NewWeightedMovingAverageModel() *WeightedMovingAverageModel {
	return &WeightedMovingAverageModel{
		BaseStrategy: strategy.NewBaseStrategy(
			NameWeightedMovingAverage,
			strategy.StrategyTypeForecast,
			"Linearly weighted moving average favouring recent days",
		),
	}
}

// Predict returns the weighted daily rate projected over the horizon
func (m *WeightedMovingAverageModel) Predict(series []int, horizonDays int) (forecast.Prediction, error) {
	if err := checkInput(series, horizonDays); err != nil {
		return forecast.Prediction{}, err
	}

	weighted, weights := 0.0, 0.0
	for i, q := range series {
		w := float64(i + 1)
		weighted += w * float64(q)
		weights += w
	}

	return forecast.Prediction{
		Units:      project(weighted/weights, horizonDays),
		Confidence: forecast.Confidence(series),
	}, nil
}
