package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/forecast"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultListLimit = 20

// ModelProvider resolves forecast models by name
type ModelProvider interface {
	GetForecastModel(name string) (forecast.Model, error)
}

// Config holds forecast engine settings
type Config struct {
	WindowDays     int
	MinDataPoints  int
	DefaultModel   string
	DefaultHorizon int
}

// DefaultConfig returns a 30 day window needing 7 days with sales
func DefaultConfig() Config {
	return Config{
		WindowDays:     30,
		MinDataPoints:  7,
		DefaultHorizon: forecast.DefaultHorizonDays,
	}
}

// ForecastService produces and stores demand forecasts from sales history
type ForecastService struct {
	repo       forecast.Repository
	history    sales.HistoryReader
	drugReader catalog.DrugReader
	models     ModelProvider
	config     Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewForecastService creates a new ForecastService
func NewForecastService(
	repo forecast.Repository,
	history sales.HistoryReader,
	drugReader catalog.DrugReader,
	models ModelProvider,
	config Config,
	logger *zap.Logger,
) *ForecastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.WindowDays <= 0 {
		config.WindowDays = defaults.WindowDays
	}
	if config.MinDataPoints <= 0 {
		config.MinDataPoints = defaults.MinDataPoints
	}
	if config.DefaultHorizon <= 0 {
		config.DefaultHorizon = defaults.DefaultHorizon
	}
	return &ForecastService{
		repo:       repo,
		history:    history,
		drugReader: drugReader,
		models:     models,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Forecast estimates a drug's demand over the horizon and stores the result
func (s *ForecastService) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "forecast", "forecast")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDrugID, req.DrugID.String())

	var (
		result *forecast.Forecast
		err    error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.ForecastOperationLabels(telemetry.OperationForecastDemand), func(c context.Context) {
		result, err = s.forecast(c, req)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrModel, result.Model,
		telemetry.SpanAttrHorizon, result.HorizonDays,
	)
	telemetry.SetOK(span)
	resp := ToForecastResponse(result)
	return &resp, nil
}

func (s *ForecastService) forecast(ctx context.Context, req ForecastRequest) (*forecast.Forecast, error) {
	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = s.config.DefaultHorizon
	}
	if err := forecast.ValidateHorizon(horizon); err != nil {
		return nil, err
	}

	model, err := s.model(req.Model)
	if err != nil {
		return nil, err
	}

	drug, err := s.drugReader.FindByID(ctx, req.DrugID)
	if err != nil {
		return nil, err
	}
	return s.forecastDrug(ctx, drug.ID, horizon, model)
}

func (s *ForecastService) model(name string) (forecast.Model, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.config.DefaultModel
	}
	m, err := s.models.GetForecastModel(name)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown forecast model %q", shared.ErrValidation, name)
		}
		return nil, err
	}
	return m, nil
}

// forecastDrug runs the model over the trailing window, today included
func (s *ForecastService) forecastDrug(ctx context.Context, drugID uuid.UUID, horizon int, model forecast.Model) (*forecast.Forecast, error) {
	today := inventory.DateOf(s.now())
	from := today.AddDate(0, 0, -(s.config.WindowDays - 1))
	to := today.AddDate(0, 0, 1)

	points, err := s.history.DailyQuantities(ctx, drugID, from, to)
	if err != nil {
		return nil, err
	}
	series := forecast.DailySeries(points, from, s.config.WindowDays)
	if n := forecast.NonZeroDays(series); n < s.config.MinDataPoints {
		return nil, fmt.Errorf("%w: %d days with sales in the last %d, need %d",
			shared.ErrInsufficientHistory, n, s.config.WindowDays, s.config.MinDataPoints)
	}

	prediction, err := model.Predict(series, horizon)
	if err != nil {
		return nil, err
	}
	f, err := forecast.NewForecast(drugID, today, horizon, model.Name(), from, series, prediction)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("Forecast created",
		zap.String("drug_id", drugID.String()),
		zap.String("model", f.Model),
		zap.Int("horizon_days", horizon),
		zap.Int("forecasted_units", f.ForecastedUnits),
		zap.String("confidence", f.Confidence.String()),
	)
	return f, nil
}

// RunAll forecasts every active drug with the default model. Drugs without
// enough history are skipped; other failures are counted and logged.
func (s *ForecastService) RunAll(ctx context.Context, horizon int) (*RunStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "forecast", "run_all")
	defer span.End()

	if horizon == 0 {
		horizon = s.config.DefaultHorizon
	}
	if err := forecast.ValidateHorizon(horizon); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	model, err := s.model("")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	stats := &RunStats{HorizonDays: horizon, ProcessedAt: s.now()}
	var runErr error
	telemetry.WithProfilingLabels(ctx, telemetry.ForecastOperationLabels(telemetry.OperationForecastRunAll), func(c context.Context) {
		drugs, err := s.drugReader.ListActive(c)
		if err != nil {
			runErr = err
			return
		}
		stats.Drugs = len(drugs)

		for i := range drugs {
			if err := c.Err(); err != nil {
				runErr = err
				return
			}
			_, err := s.forecastDrug(c, drugs[i].ID, horizon, model)
			switch {
			case err == nil:
				stats.Forecasted++
			case errors.Is(err, shared.ErrInsufficientHistory):
				stats.Skipped++
			default:
				stats.Failed++
				s.logger.Error("Failed to forecast drug",
					zap.String("drug_id", drugs[i].ID.String()),
					zap.String("drug", drugs[i].Name),
					zap.Error(err),
				)
			}
		}
	})
	if runErr != nil {
		telemetry.RecordError(span, runErr)
		return stats, runErr
	}

	telemetry.SetAttributes(span, "forecasted", stats.Forecasted, "skipped", stats.Skipped)
	telemetry.SetOK(span)
	s.logger.Info("Forecast run completed",
		zap.Int("drugs", stats.Drugs),
		zap.Int("forecasted", stats.Forecasted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// ListForecasts returns a drug's forecasts newest first
func (s *ForecastService) ListForecasts(ctx context.Context, drugID uuid.UUID, filter ForecastListFilter) ([]ForecastResponse, error) {
	if _, err := s.drugReader.FindByID(ctx, drugID); err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	list, err := s.repo.ListByDrug(ctx, drugID, limit)
	if err != nil {
		return nil, err
	}
	return ToForecastResponses(list), nil
}

// LatestForecast returns the most recent forecast of a drug
func (s *ForecastService) LatestForecast(ctx context.Context, drugID uuid.UUID) (*ForecastResponse, error) {
	f, err := s.repo.LatestByDrug(ctx, drugID)
	if err != nil {
		return nil, err
	}
	resp := ToForecastResponse(f)
	return &resp, nil
}
