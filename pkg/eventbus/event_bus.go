// Package eventbus provides the message bus that carries scheduled steps from the API to the workers.
package eventbus

import (
	"context"

	"github.com/dukex/formflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish sends the event keyed by key. Events sharing a key are delivered in order
	// on brokers that partition by key.
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
