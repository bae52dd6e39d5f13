package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
)

// EventRecorder captures domain events. It satisfies both
// shared.EventPublisher and shared.EventHandler, so services can publish
// into it and buses can deliver to it.
type EventRecorder struct {
	mu         sync.Mutex
	eventTypes []string
	events     []shared.DomainEvent
	err        error
}

// NewEventRecorder creates a recorder subscribed to eventTypes, or to every
// event when none are given.
func NewEventRecorder(eventTypes ...string) *EventRecorder {
	return &EventRecorder{eventTypes: eventTypes}
}

// EventTypes returns the subscribed event types
func (r *EventRecorder) EventTypes() []string {
	return r.eventTypes
}

// Publish records events in order
func (r *EventRecorder) Publish(_ context.Context, events ...shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return r.err
}

// Handle records a delivered event and returns the configured error
func (r *EventRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	return r.Publish(ctx, event)
}

// Events returns a copy of everything recorded
func (r *EventRecorder) Events() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of one type
func (r *EventRecorder) OfType(eventType string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events were recorded
func (r *EventRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// FailWith makes later Publish and Handle calls return err after recording
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// TestEvent is a bare domain event on a synthetic batch aggregate
type TestEvent struct {
	shared.BaseDomainEvent
}

// NewTestEvent creates an event of eventType with a fresh ID
func NewTestEvent(eventType string) *TestEvent {
	return &TestEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Batch", uuid.New())}
}

var (
	_ shared.EventPublisher = (*EventRecorder)(nil)
	_ shared.EventHandler   = (*EventRecorder)(nil)
)
