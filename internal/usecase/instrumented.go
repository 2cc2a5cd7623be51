package usecase

import (
	"context"
	"errors"
	"time"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

// instrumentedProvider logs and times every provider call
type instrumentedProvider struct {
	next    repository.FlightProvider
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewInstrumentedFlightProvider wraps next with entry/exit logging and request metrics
func NewInstrumentedFlightProvider(next repository.FlightProvider, log logger.Logger, m *metrics.Metrics) repository.FlightProvider {
	return &instrumentedProvider{
		next:    next,
		logger:  log.With("component", "flight_provider"),
		metrics: m,
	}
}

func (p *instrumentedProvider) Fetch(ctx context.Context, filters map[string]string) ([]entity.Flight, error) {
	p.logger.Debug("Fetch started", "filters", filters)
	start := time.Now()

	flights, err := p.next.Fetch(ctx, filters)

	elapsed := time.Since(start)
	p.metrics.UpstreamLatency.Observe(elapsed.Seconds())
	if err != nil {
		outcome := upstreamOutcome(err)
		p.metrics.UpstreamRequests.WithLabelValues(outcome).Inc()
		p.logger.Warn("Fetch failed", "filters", filters, "outcome", outcome, "durationMs", elapsed.Milliseconds(), "error", err)
		return nil, err
	}

	p.metrics.UpstreamRequests.WithLabelValues("success").Inc()
	p.logger.Debug("Fetch finished", "filters", filters, "count", len(flights), "durationMs", elapsed.Milliseconds())
	return flights, nil
}

func upstreamOutcome(err error) string {
	switch {
	case errors.Is(err, entity.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, entity.ErrBadResponse):
		return "bad_response"
	case errors.Is(err, entity.ErrUnreachable):
		return "unreachable"
	default:
		return "error"
	}
}

// instrumentedPublisher counts publish outcomes
type instrumentedPublisher struct {
	next    repository.EventPublisher
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewInstrumentedPublisher wraps next with publish metrics and debug logging
func NewInstrumentedPublisher(next repository.EventPublisher, log logger.Logger, m *metrics.Metrics) repository.EventPublisher {
	return &instrumentedPublisher{
		next:    next,
		logger:  log.With("component", "event_publisher"),
		metrics: m,
	}
}

func (p *instrumentedPublisher) Publish(ctx context.Context, topic, key string, flight entity.Flight) error {
	if err := p.next.Publish(ctx, topic, key, flight); err != nil {
		p.metrics.PublishFailures.Inc()
		return err
	}
	p.metrics.EventsPublished.Inc()
	p.logger.Debug("Published flight", "topic", topic, "key", key)
	return nil
}

func (p *instrumentedPublisher) Close() error {
	return p.next.Close()
}
