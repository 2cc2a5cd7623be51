package usecase

import (
	"context"
	"time"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

// Broadcaster fans a batch out to live subscribers
type Broadcaster interface {
	Broadcast(batch []entity.Flight) int
}

// BroadcastScheduler refreshes the latest batch on a fixed period and
// pushes the annotated result to every subscriber.
type BroadcastScheduler struct {
	service     *FlightService
	broadcaster Broadcaster
	interval    time.Duration
	logger      logger.Logger
	metrics     *metrics.Metrics
}

// NewBroadcastScheduler creates a scheduler ticking every interval
func NewBroadcastScheduler(service *FlightService, broadcaster Broadcaster, interval time.Duration, log logger.Logger, m *metrics.Metrics) *BroadcastScheduler {
	return &BroadcastScheduler{
		service:     service,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      log.With("component", "broadcast_scheduler"),
		metrics:     m,
	}
}

// Run ticks until ctx is cancelled. Ticks that fall behind are dropped, not queued.
func (s *BroadcastScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Broadcast scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Broadcast scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one fetch, publish, predict and broadcast cycle. Every successful
// tick publishes its selected batch, cached or not. A failed fetch skips the
// rest of the cycle and returns false.
func (s *BroadcastScheduler) Tick(ctx context.Context) bool {
	flights, err := s.service.LoadFlights(ctx)
	if err != nil {
		s.metrics.BroadcastTicks.WithLabelValues("failure").Inc()
		s.logger.Error("Error in flight stream", "error", err)
		return false
	}

	selected := s.service.Select(flights)
	s.service.PublishBatch(ctx, selected)
	batch := s.service.Annotate(selected)
	reached := s.broadcaster.Broadcast(batch)
	s.metrics.BroadcastTicks.WithLabelValues("success").Inc()
	s.logger.Info("Streamed flights update", "flights", len(batch), "subscribers", reached)
	return true
}
