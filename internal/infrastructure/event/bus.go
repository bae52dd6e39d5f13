package event

import (
	"context"
	"errors"
	"sync"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultQueueSize is the number of events the bus buffers before Publish
// starts blocking
const DefaultQueueSize = 256

// ErrBusStopped is returned by Publish once Stop has been called
var ErrBusStopped = errors.New("event bus stopped")

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus dispatches events to handlers on a background worker once
// started, so posting a sale never waits on alert evaluation. Before Start
// events are dispatched synchronously.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	queue    chan envelope

	mu      sync.RWMutex
	running bool
	stopped bool
	wg      sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
		queue:    make(chan envelope, DefaultQueueSize),
	}
}

// Publish hands events to their handlers. Handler errors are logged, never
// returned, because the publishing operation has already committed.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return ErrBusStopped
	}
	for _, e := range events {
		if !b.running {
			b.dispatch(ctx, e)
			continue
		}
		// Handlers outlive the request that published the event.
		env := envelope{ctx: context.WithoutCancel(ctx), event: e}
		select {
		case b.queue <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types, or for the types
// the handler declares when none are given
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start launches the dispatch worker
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running || b.stopped {
		return nil
	}
	b.running = true
	b.wg.Add(1)
	go b.work()
	b.logger.Info("event bus started")
	return nil
}

// Stop drains queued events and stops the worker. It returns early with the
// context error if draining outlasts ctx.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	wasRunning := b.running
	b.running = false
	if !b.stopped {
		b.stopped = true
		close(b.queue)
	}
	b.mu.Unlock()

	if !wasRunning {
		return nil
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) work() {
	defer b.wg.Done()
	for env := range b.queue {
		b.dispatch(env.ctx, env.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, e shared.DomainEvent) {
	for _, handler := range b.registry.Handlers(e.EventType()) {
		if err := b.safeHandle(ctx, handler, e); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) safeHandle(ctx context.Context, handler shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", e.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, e)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
