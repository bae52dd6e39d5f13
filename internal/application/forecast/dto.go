package forecast

import (
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ForecastRequest asks for a demand forecast of one drug
type ForecastRequest struct {
	DrugID      uuid.UUID `json:"drug_id" binding:"required"`
	HorizonDays int       `json:"horizon_days" binding:"omitempty,min=1,max=365"`
	Model       string    `json:"model" binding:"omitempty,max=50"`
}

// ForecastListFilter bounds a forecast listing
type ForecastListFilter struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ForecastResponse represents a stored forecast in API responses
type ForecastResponse struct {
	ID              uuid.UUID       `json:"id"`
	DrugID          uuid.UUID       `json:"drug_id"`
	ForecastDate    string          `json:"forecast_date"`
	ForecastedUnits int             `json:"forecasted_units"`
	Confidence      decimal.Decimal `json:"confidence"`
	Model           string          `json:"model"`
	HorizonDays     int             `json:"horizon_days"`
	WindowStart     string          `json:"window_start"`
	HistoricalData  []int           `json:"historical_data"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RunStats summarises a forecast run over every active drug
type RunStats struct {
	Drugs       int       `json:"drugs"`
	Forecasted  int       `json:"forecasted"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	HorizonDays int       `json:"horizon_days"`
	ProcessedAt time.Time `json:"processed_at"`
}

const dateLayout = "2006-01-02"

// ToForecastResponse converts a domain Forecast to ForecastResponse
func ToForecastResponse(f *forecast.Forecast) ForecastResponse {
	return ForecastResponse{
		ID:              f.ID,
		DrugID:          f.DrugID,
		ForecastDate:    f.ForecastDate.Format(dateLayout),
		ForecastedUnits: f.ForecastedUnits,
		Confidence:      f.Confidence,
		Model:           f.Model,
		HorizonDays:     f.HorizonDays,
		WindowStart:     f.WindowStart.Format(dateLayout),
		HistoricalData:  f.HistoricalData,
		CreatedAt:       f.CreatedAt,
	}
}

// ToForecastResponses converts a slice of forecasts
func ToForecastResponses(list []forecast.Forecast) []ForecastResponse {
	out := make([]ForecastResponse, len(list))
	for i := range list {
		out[i] = ToForecastResponse(&list[i])
	}
	return out
}
