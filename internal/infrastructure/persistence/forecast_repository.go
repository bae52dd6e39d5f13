package persistence

import (
	"context"
	"errors"

	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormForecastRepository implements forecast.Repository using GORM
type GormForecastRepository struct {
	db *gorm.DB
}

// NewGormForecastRepository creates a new GormForecastRepository
func NewGormForecastRepository(db *gorm.DB) *GormForecastRepository {
	return &GormForecastRepository{db: db}
}

// Create inserts a new forecast
func (r *GormForecastRepository) Create(ctx context.Context, f *forecast.Forecast) error {
	m, err := models.ForecastModelFromDomain(f)
	if err != nil {
		return err
	}
	return translateError(r.db.WithContext(ctx).Omit("Drug").Create(m).Error)
}

// FindByID returns a forecast
func (r *GormForecastRepository) FindByID(ctx context.Context, id uuid.UUID) (*forecast.Forecast, error) {
	var m models.ForecastModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain()
}

// ListByDrug returns a drug's forecasts newest first
func (r *GormForecastRepository) ListByDrug(ctx context.Context, drugID uuid.UUID, limit int) ([]forecast.Forecast, error) {
	q := r.db.WithContext(ctx).
		Where("drug_id = ?", drugID).
		Order("created_at DESC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ms []models.ForecastModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}

	out := make([]forecast.Forecast, 0, len(ms))
	for i := range ms {
		f, err := ms[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

// LatestByDrug returns the most recent forecast
func (r *GormForecastRepository) LatestByDrug(ctx context.Context, drugID uuid.UUID) (*forecast.Forecast, error) {
	list, err := r.ListByDrug(ctx, drugID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, shared.ErrNotFound
	}
	return &list[0], nil
}

// Ensure GormForecastRepository implements forecast.Repository
var _ forecast.Repository = (*GormForecastRepository)(nil)
