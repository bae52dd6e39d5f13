package models

import (
	"encoding/json"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ForecastModel is the persistence model for the Forecast entity
type ForecastModel struct {
	BaseModel
	DrugID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_forecasts_drug_created,priority:1"`
	Drug            *DrugModel      `gorm:"foreignKey:DrugID;references:ID;constraint:OnDelete:CASCADE"`
	ForecastDate    time.Time       `gorm:"type:date;not null"`
	ForecastedUnits int             `gorm:"not null;check:chk_forecasts_units,forecasted_units >= 0"`
	Confidence      decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	Model           string          `gorm:"type:varchar(50);not null"`
	HorizonDays     int             `gorm:"not null"`
	WindowStart     time.Time       `gorm:"type:date;not null"`
	HistoricalData  string          `gorm:"type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (ForecastModel) TableName() string {
	return "forecasts"
}

// ToDomain converts the persistence model to a domain Forecast
func (m *ForecastModel) ToDomain() (*forecast.Forecast, error) {
	var series []int
	if m.HistoricalData != "" {
		if err := json.Unmarshal([]byte(m.HistoricalData), &series); err != nil {
			return nil, err
		}
	}
	return &forecast.Forecast{
		BaseEntity:      m.BaseModel.Entity(),
		DrugID:          m.DrugID,
		ForecastDate:    m.ForecastDate.UTC(),
		ForecastedUnits: m.ForecastedUnits,
		Confidence:      m.Confidence,
		Model:           m.Model,
		HorizonDays:     m.HorizonDays,
		WindowStart:     m.WindowStart.UTC(),
		HistoricalData:  series,
	}, nil
}

// ForecastModelFromDomain creates a new persistence model from a domain Forecast
func ForecastModelFromDomain(f *forecast.Forecast) (*ForecastModel, error) {
	series := f.HistoricalData
	if series == nil {
		series = []int{}
	}
	data, err := json.Marshal(series)
	if err != nil {
		return nil, err
	}
	m := &ForecastModel{
		DrugID:          f.DrugID,
		ForecastDate:    f.ForecastDate,
		ForecastedUnits: f.ForecastedUnits,
		Confidence:      f.Confidence,
		Model:           f.Model,
		HorizonDays:     f.HorizonDays,
		WindowStart:     f.WindowStart,
		HistoricalData:  string(data),
	}
	m.SetEntity(f.BaseEntity)
	return m, nil
}
