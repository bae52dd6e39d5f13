// Package strategy holds the metadata shared by pluggable ledger policies:
// batch allocation orders and demand forecast models.
package strategy

type StrategyType string

const (
	StrategyTypeAllocation StrategyType = "allocation"
	StrategyTypeForecast   StrategyType = "forecast"
)

func (t StrategyType) String() string { return string(t) }

func (t StrategyType) IsValid() bool {
	return t == StrategyTypeAllocation || t == StrategyTypeForecast
}

// Strategy describes a registrable policy. Name is its registry key.
type Strategy interface {
	Name() string
	Type() StrategyType
	Description() string
}

// BaseStrategy is embedded by concrete strategies to satisfy Strategy.
type BaseStrategy struct {
	name, description string
	kind              StrategyType
}

func NewBaseStrategy(name string, kind StrategyType, description string) BaseStrategy {
	return BaseStrategy{name: name, kind: kind, description: description}
}

func (s BaseStrategy) Name() string        { return s.name }
func (s BaseStrategy) Type() StrategyType  { return s.kind }
func (s BaseStrategy) Description() string { return s.description }
