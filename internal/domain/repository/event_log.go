package repository

import (
	"context"

	"flightstream-service/internal/domain/entity"
)

// EventPublisher defines the interface for writing flight records onto the event log.
// Publish is fire-and-forget: a nil error means the record was handed off, not delivered.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, flight entity.Flight) error
	Close() error
}

// BatchHandler processes one batch of consumed events
type BatchHandler func(ctx context.Context, events []entity.FlightEvent) error

// EventSubscriber defines the interface for draining the event log in batches.
// Consume blocks until ctx is cancelled.
type EventSubscriber interface {
	Consume(ctx context.Context, handler BatchHandler) error
	Close() error
}
