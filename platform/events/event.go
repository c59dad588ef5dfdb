// Package events provides the in-process event bus the pipeline, routing
// and session modules use to notify each other without direct imports.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"
)

// Event is the interface every published domain event implements.
type Event interface {
	// EventName returns the dotted identifier for the event type,
	// e.g. "sessions.session.finished".
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events. Embed it and
// construct with NewBaseEvent.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent returns a BaseEvent stamped with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a specific type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish sends an event to all handlers registered for its name.
	// Handlers run asynchronously; failures are logged, not returned.
	Publish(ctx context.Context, event Event)

	// PublishSync sends an event and waits for every handler, returning
	// the first handler error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for events whose EventName matches
	// eventName.
	Subscribe(eventName string, handler Handler)
}
