package strategy

import (
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/strategy/allocation"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/strategy/forecastmodel"
)

// NewRegistryWithDefaults creates a registry holding the built-in
// strategies, with fefo and moving_average as defaults.
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	if err := r.RegisterAllocationStrategy(allocation.NewFEFOStrategy()); err != nil {
		return nil, err
	}
	if err := r.RegisterAllocationStrategy(allocation.NewFIFOStrategy()); err != nil {
		return nil, err
	}

	if err := r.RegisterForecastModel(forecastmodel.NewMovingAverageModel()); err != nil {
		return nil, err
	}
	if err := r.RegisterForecastModel(forecastmodel.NewWeightedMovingAverageModel()); err != nil {
		return nil, err
	}

	if err := r.SetDefault(strategy.StrategyTypeAllocation, allocation.NameFEFO); err != nil {
		return nil, err
	}
	if err := r.SetDefault(strategy.StrategyTypeForecast, forecastmodel.NameMovingAverage); err != nil {
		return nil, err
	}

	return r, nil
}
