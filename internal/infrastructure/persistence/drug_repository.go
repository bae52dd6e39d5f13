package persistence

import (
	"context"
	"errors"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDrugRepository implements catalog.DrugReader and catalog.DrugWriter using GORM
type GormDrugRepository struct {
	db *gorm.DB
}

// NewGormDrugRepository creates a new GormDrugRepository
func NewGormDrugRepository(db *gorm.DB) *GormDrugRepository {
	return &GormDrugRepository{db: db}
}

// FindByID finds a drug by its ID
func (r *GormDrugRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Drug, error) {
	var m models.DrugModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrUnknownDrug
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIDs finds the drugs among ids that exist
func (r *GormDrugRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Drug, error) {
	result := make(map[uuid.UUID]*catalog.Drug, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var ms []models.DrugModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ms).Error; err != nil {
		return nil, err
	}
	for i := range ms {
		result[ms[i].ID] = ms[i].ToDomain()
	}
	return result, nil
}

// ListActive returns every active drug ordered by name
func (r *GormDrugRepository) ListActive(ctx context.Context) ([]catalog.Drug, error) {
	var ms []models.DrugModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	drugs := make([]catalog.Drug, len(ms))
	for i := range ms {
		drugs[i] = *ms[i].ToDomain()
	}
	return drugs, nil
}

// CountActive returns the number of active drugs
func (r *GormDrugRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DrugModel{}).
		Where("active = ?", true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a drug
func (r *GormDrugRepository) Save(ctx context.Context, drug *catalog.Drug) error {
	return translateError(r.db.WithContext(ctx).Save(models.DrugModelFromDomain(drug)).Error)
}

// ExistsByName reports whether a drug with the given name exists
func (r *GormDrugRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DrugModel{}).
		Where("name = ?", name).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure GormDrugRepository implements the catalog interfaces
var (
	_ catalog.DrugReader = (*GormDrugRepository)(nil)
	_ catalog.DrugWriter = (*GormDrugRepository)(nil)
)
