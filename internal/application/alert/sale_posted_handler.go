package alert

import (
	"context"
	"fmt"

	"github.com/benedict431app/PharmacyOS/internal/domain/alert"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers alerts raised by stock movements.
// Implementations can support different channels (in-app, email, SMS, etc.)
type Notifier interface {
	// SendAlert sends one alert notification
	SendAlert(ctx context.Context, a alert.Alert) error
}

// DrugAlertEvaluator derives alerts for a set of drugs
type DrugAlertEvaluator interface {
	EvaluateDrugs(ctx context.Context, drugIDs []uuid.UUID) ([]alert.Alert, error)
}

// SalePostedHandler re-evaluates the alerts of the drugs a sale touched and
// forwards stock alerts to the notifier
type SalePostedHandler struct {
	evaluator DrugAlertEvaluator
	notifier  Notifier
	logger    *zap.Logger
}

// NewSalePostedHandler creates a new handler for SalePosted events
func NewSalePostedHandler(evaluator DrugAlertEvaluator, logger *zap.Logger) *SalePostedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalePostedHandler{
		evaluator: evaluator,
		logger:    logger,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *SalePostedHandler) WithNotifier(notifier Notifier) *SalePostedHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *SalePostedHandler) EventTypes() []string {
	return []string{sales.EventTypeSalePosted}
}

// Handle processes a SalePostedEvent
func (h *SalePostedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	posted, ok := event.(*sales.SalePostedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", sales.EventTypeSalePosted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			sales.EventTypeSalePosted, event.EventType())
	}

	alerts, err := h.evaluator.EvaluateDrugs(ctx, posted.DrugIDs())
	if err != nil {
		return fmt.Errorf("evaluate alerts for sale %s: %w", posted.SaleNumber, err)
	}

	for _, a := range alerts {
		if a.Kind != alert.KindLowStock && a.Kind != alert.KindOutOfStock {
			continue
		}
		h.logger.Warn("stock alert after sale",
			zap.String("sale_number", posted.SaleNumber),
			zap.String("drug_id", a.DrugID.String()),
			zap.String("kind", string(a.Kind)),
			zap.Int("quantity", a.Quantity),
		)
		if h.notifier == nil {
			continue
		}
		if err := h.notifier.SendAlert(ctx, a); err != nil {
			// notification failure does not fail event handling
			h.logger.Error("failed to send stock alert notification",
				zap.String("drug_id", a.DrugID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Ensure SalePostedHandler implements shared.EventHandler
var _ shared.EventHandler = (*SalePostedHandler)(nil)

// LoggingNotifier is a simple notifier that logs alerts
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a new logging notifier
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// SendAlert logs the alert
func (n *LoggingNotifier) SendAlert(_ context.Context, a alert.Alert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("kind", string(a.Kind)),
		zap.String("severity", string(a.Severity)),
		zap.String("drug", a.DrugName),
		zap.Int("quantity", a.Quantity),
		zap.Int("reorder_level", a.ReorderLevel),
		zap.String("message", a.Message),
	)
	return nil
}
