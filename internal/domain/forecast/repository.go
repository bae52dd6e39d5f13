package forecast

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists forecasts. Forecasts are append-only.
type Repository interface {
	// Create inserts a new forecast
	Create(ctx context.Context, f *Forecast) error

	// FindByID returns a forecast or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Forecast, error)

	// ListByDrug returns a drug's forecasts newest first
	ListByDrug(ctx context.Context, drugID uuid.UUID, limit int) ([]Forecast, error)

	// LatestByDrug returns the most recent forecast or shared.ErrNotFound
	LatestByDrug(ctx context.Context, drugID uuid.UUID) (*Forecast, error)
}
