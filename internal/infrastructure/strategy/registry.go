package strategy

import (
	"fmt"
	"slices"
	"sync"

	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared/strategy"
)

type named interface{ Name() string }

// shelf holds the strategies of one kind plus the name used when a caller
// asks for "". Callers hold the registry lock.
type shelf[T named] struct {
	kind     strategy.StrategyType
	byName   map[string]T
	fallback string
}

func newShelf[T named](kind strategy.StrategyType) *shelf[T] {
	return &shelf[T]{kind: kind, byName: map[string]T{}}
}

func (s *shelf[T]) add(item T) error {
	name := item.Name()
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("%w: %s strategy %q", shared.ErrAlreadyExists, s.kind, name)
	}
	s.byName[name] = item
	return nil
}

func (s *shelf[T]) get(name string) (T, error) {
	if name == "" {
		name = s.fallback
	}
	item, ok := s.byName[name]
	if !ok {
		var zero T
		if name == "" {
			return zero, fmt.Errorf("%w: no default %s strategy", shared.ErrNotFound, s.kind)
		}
		return zero, fmt.Errorf("%w: %s strategy %q", shared.ErrNotFound, s.kind, name)
	}
	return item, nil
}

func (s *shelf[T]) has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

func (s *shelf[T]) names() []string {
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// StrategyRegistry resolves batch allocation strategies and forecast models
// by name. It is safe for concurrent use.
type StrategyRegistry struct {
	mu         sync.RWMutex
	allocation *shelf[inventory.AllocationStrategy]
	forecast   *shelf[forecast.Model]
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		allocation: newShelf[inventory.AllocationStrategy](strategy.StrategyTypeAllocation),
		forecast:   newShelf[forecast.Model](strategy.StrategyTypeForecast),
	}
}

func (r *StrategyRegistry) RegisterAllocationStrategy(s inventory.AllocationStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocation.add(s)
}

// GetAllocationStrategy returns the named strategy, or the default for "".
func (r *StrategyRegistry) GetAllocationStrategy(name string) (inventory.AllocationStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocation.get(name)
}

func (r *StrategyRegistry) ListAllocationStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocation.names()
}

func (r *StrategyRegistry) RegisterForecastModel(m forecast.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forecast.add(m)
}

// GetForecastModel returns the named model, or the default for "".
func (r *StrategyRegistry) GetForecastModel(name string) (forecast.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forecast.get(name)
}

func (r *StrategyRegistry) ListForecastModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forecast.names()
}

// SetDefault picks the strategy used when callers pass no name. The name
// must already be registered.
func (r *StrategyRegistry) SetDefault(kind strategy.StrategyType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasLocked(kind, name) {
		return fmt.Errorf("%w: %s strategy %q", shared.ErrNotFound, kind, name)
	}
	switch kind {
	case strategy.StrategyTypeAllocation:
		r.allocation.fallback = name
	case strategy.StrategyTypeForecast:
		r.forecast.fallback = name
	}
	return nil
}

func (r *StrategyRegistry) GetDefault(kind strategy.StrategyType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case strategy.StrategyTypeAllocation:
		return r.allocation.fallback
	case strategy.StrategyTypeForecast:
		return r.forecast.fallback
	}
	return ""
}

func (r *StrategyRegistry) IsRegistered(kind strategy.StrategyType, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasLocked(kind, name)
}

func (r *StrategyRegistry) hasLocked(kind strategy.StrategyType, name string) bool {
	switch kind {
	case strategy.StrategyTypeAllocation:
		return r.allocation.has(name)
	case strategy.StrategyTypeForecast:
		return r.forecast.has(name)
	}
	return false
}
