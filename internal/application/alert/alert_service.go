package alert

import (
	"context"
	"errors"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/alert"
	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Metrics receives alert and sweep counters
type Metrics interface {
	RecordAlerts(ctx context.Context, counts map[alert.Kind]int)
	RecordBatchesExpired(ctx context.Context, n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordAlerts(context.Context, map[alert.Kind]int) {}
func (noopMetrics) RecordBatchesExpired(context.Context, int)        {}

// AlertService derives alerts from the current stock and retires expired
// batches. Evaluation never writes.
type AlertService struct {
	drugReader     catalog.DrugReader
	batchRepo      inventory.BatchStore
	rules          alert.Rules
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewAlertService creates a new AlertService
func NewAlertService(
	drugReader catalog.DrugReader,
	batchRepo inventory.BatchStore,
	rules alert.Rules,
	logger *zap.Logger,
) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := alert.DefaultRules()
	if rules.ExpiryWindowDays <= 0 {
		rules.ExpiryWindowDays = defaults.ExpiryWindowDays
	}
	if rules.CriticalDays < 0 {
		rules.CriticalDays = defaults.CriticalDays
	}
	return &AlertService{
		drugReader: drugReader,
		batchRepo:  batchRepo,
		rules:      rules,
		metrics:    noopMetrics{},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *AlertService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *AlertService) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	s.metrics = m
}

// Rules returns the thresholds in use
func (s *AlertService) Rules() alert.Rules {
	return s.rules
}

// Evaluate derives every current alert
func (s *AlertService) Evaluate(ctx context.Context, filter AlertFilter) (*AlertsResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "alert", telemetry.OperationEvaluateAlerts)
	defer span.End()

	drugs, err := s.drugReader.ListActive(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	batches, err := s.batchRepo.ListAll(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	alerts := alert.Evaluate(alert.Snapshot{Drugs: drugs, Batches: batches}, now, s.rules)
	counts := alert.Count(alerts)
	s.metrics.RecordAlerts(ctx, counts)
	telemetry.SetAttribute(span, "alert_count", len(alerts))
	telemetry.SetOK(span)

	return &AlertsResponse{
		Alerts:      filter.apply(alerts),
		Counts:      counts,
		EvaluatedAt: now,
	}, nil
}

// EvaluateDrugs derives the alerts of the given drugs only
func (s *AlertService) EvaluateDrugs(ctx context.Context, drugIDs []uuid.UUID) ([]alert.Alert, error) {
	found, err := s.drugReader.FindByIDs(ctx, drugIDs)
	if err != nil {
		return nil, err
	}

	snap := alert.Snapshot{}
	for _, id := range drugIDs {
		drug, ok := found[id]
		if !ok {
			continue
		}
		batches, err := s.batchRepo.ListByDrug(ctx, id)
		if err != nil {
			return nil, err
		}
		snap.Drugs = append(snap.Drugs, *drug)
		snap.Batches = append(snap.Batches, batches...)
	}
	return alert.Evaluate(snap, s.now(), s.rules), nil
}

// SweepExpired moves every past-expiry batch still stored as sellable to
// expired and publishes BatchExpired for each one. A batch that changed
// concurrently is counted as failed and picked up by the next sweep.
func (s *AlertService) SweepExpired(ctx context.Context) (*SweepStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "alert", telemetry.OperationSweepExpired)
	defer span.End()

	now := s.now()
	stats := &SweepStats{ProcessedAt: now}

	var sweepErr error
	telemetry.WithProfilingLabels(ctx, telemetry.InventoryOperationLabels(telemetry.OperationSweepExpired), func(c context.Context) {
		expired, err := s.batchRepo.ListExpiredUnmarked(c, now)
		if err != nil {
			s.logger.Error("Failed to find expired batches", zap.Error(err))
			sweepErr = err
			return
		}

		stats.TotalExpired = len(expired)
		if stats.TotalExpired == 0 {
			s.logger.Debug("No expired batches found")
			return
		}
		s.logger.Info("Found expired batches", zap.Int("count", stats.TotalExpired))

		for i := range expired {
			if err := s.expire(c, &expired[i], now); err != nil {
				stats.Failed++
				s.logger.Error("Failed to mark batch expired",
					zap.String("batch_id", expired[i].ID.String()),
					zap.String("lot_number", expired[i].LotNumber),
					zap.Error(err),
				)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					sweepErr = err
					return
				}
				continue
			}
			stats.Marked++
		}
	})
	if sweepErr != nil {
		telemetry.RecordError(span, sweepErr)
		return stats, sweepErr
	}

	s.metrics.RecordBatchesExpired(ctx, stats.Marked)
	telemetry.SetAttributes(span, "expired_total", stats.TotalExpired, "expired_marked", stats.Marked)
	telemetry.SetOK(span)
	s.logger.Info("Expiry sweep completed",
		zap.Int("total", stats.TotalExpired),
		zap.Int("marked", stats.Marked),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *AlertService) expire(ctx context.Context, batch *inventory.Batch, now time.Time) error {
	if !batch.MarkExpired(now) {
		return nil
	}
	if err := s.batchRepo.UpdateStatus(ctx, batch); err != nil {
		return err
	}
	events := batch.PullDomainEvents()
	if s.eventPublisher != nil && len(events) > 0 {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			s.logger.Error("Failed to publish batch expired event",
				zap.String("batch_id", batch.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}
