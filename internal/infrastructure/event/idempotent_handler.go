package event

import (
	"context"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotentHandler wraps an EventHandler so each event ID is handled at
// most once per TTL, even if it is published again.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	config shared.IdempotencyConfig,
	logger *zap.Logger,
) *IdempotentHandler {
	return &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  config,
		logger:  logger,
	}
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event ID and then delegates. A failed delegate releases
// the claim so a later redelivery can succeed.
func (h *IdempotentHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, e)
	}

	key := "event:" + e.EventID().String()
	fresh, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	if err != nil {
		// Processing twice is safer than dropping an alert refresh.
		h.logger.Warn("idempotency check failed, handling anyway",
			zap.String("event_id", e.EventID().String()),
			zap.Error(err),
		)
	} else if !fresh {
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", e.EventID().String()),
			zap.String("event_type", e.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, e); err != nil {
		if relErr := h.store.Release(ctx, key); relErr != nil {
			h.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
		return err
	}
	return nil
}

// Ensure IdempotentHandler implements EventHandler
var _ shared.EventHandler = (*IdempotentHandler)(nil)
