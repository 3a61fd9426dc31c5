// Package events carries governance notifications between modules running
// in one process. It holds no business logic.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every notification on the bus.
type Event interface {
	// EventName is the routing key handlers subscribe to.
	EventName() string
	// EventID identifies one occurrence, so alert sinks can drop duplicates.
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// BaseEvent is embedded by concrete events to satisfy the identity part
// of Event.
type BaseEvent struct {
	ID        uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() uuid.UUID { return e.ID }

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a fresh event ID and the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

// Handler reacts to one event. A returned error is logged by the bus and,
// for PublishSync, handed back to the publisher.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events by EventName.
type Bus interface {
	// Publish fans out to handlers in the background and returns at once.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers in registration order and returns the
	// first error after all of them have run.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
