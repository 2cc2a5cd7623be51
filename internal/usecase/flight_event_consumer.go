package usecase

import (
	"context"
	"fmt"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

// FlightEventConsumer observes the event log. It logs and counts what it
// receives and optionally archives the latest snapshot per key.
type FlightEventConsumer struct {
	subscriber repository.EventSubscriber
	archive    repository.FlightEventRepository
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewFlightEventConsumer creates a consumer. archive may be nil.
func NewFlightEventConsumer(
	subscriber repository.EventSubscriber,
	archive repository.FlightEventRepository,
	logger logger.Logger,
	m *metrics.Metrics,
) *FlightEventConsumer {
	return &FlightEventConsumer{
		subscriber: subscriber,
		archive:    archive,
		logger:     logger.With("component", "flight_event_consumer"),
		metrics:    m,
	}
}

// Run drains the log until ctx is cancelled
func (c *FlightEventConsumer) Run(ctx context.Context) error {
	c.logger.Info("Flight event consumer started", "archive", c.archive != nil)
	if err := c.subscriber.Consume(ctx, c.HandleBatch); err != nil {
		return fmt.Errorf("consuming flight events: %w", err)
	}
	return nil
}

// HandleBatch processes one consumed batch. Archive failures are logged and
// never returned, so offsets still advance.
func (c *FlightEventConsumer) HandleBatch(ctx context.Context, events []entity.FlightEvent) error {
	c.logger.Info("Received flight batch", "size", len(events))
	for i := range events {
		c.logger.Debug("Consumed flight",
			"key", events[i].Key,
			"departure", events[i].Flight.DepartureIATA(),
			"airline", events[i].Flight.AirlineName(),
		)
	}
	c.metrics.EventsConsumed.Add(float64(len(events)))

	if c.archive == nil || len(events) == 0 {
		return nil
	}
	if err := c.archive.UpsertBatch(ctx, events); err != nil {
		c.metrics.ArchiveFailures.Inc()
		c.logger.Error("Failed to archive flight batch", "error", err, "size", len(events))
	}
	return nil
}
