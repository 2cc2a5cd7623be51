package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/internal/infrastructure/cache"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

type fakeProvider struct {
	mu      sync.Mutex
	flights []entity.Flight
	err     error
	calls   []map[string]string
}

func (p *fakeProvider) Fetch(ctx context.Context, filters map[string]string) ([]entity.Flight, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, filters)
	if p.err != nil {
		return nil, p.err
	}
	return entity.CloneFlights(p.flights), nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type publishedEvent struct {
	topic string
	key   string
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedEvent
	failKey   string
	attempts  int
	closed    bool
}

func (p *fakePublisher) Publish(ctx context.Context, topic, key string, flight entity.Flight) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if key == p.failKey {
		return errors.New("broker down")
	}
	p.published = append(p.published, publishedEvent{topic: topic, key: key})
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.published))
	for i, e := range p.published {
		out[i] = e.key
	}
	return out
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	batches [][]entity.Flight
}

func (b *fakeBroadcaster) Broadcast(batch []entity.Flight) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, batch)
	return 1
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

type fakeArchive struct {
	mu       sync.Mutex
	upserted []entity.FlightEvent
	err      error
}

func (a *fakeArchive) UpsertBatch(ctx context.Context, events []entity.FlightEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.upserted = append(a.upserted, events...)
	return nil
}

func (a *fakeArchive) FindByKey(ctx context.Context, key string) (*entity.FlightEvent, error) {
	return nil, nil
}

func (a *fakeArchive) Close(ctx context.Context) error { return nil }

type fakeSubscriber struct {
	batches [][]entity.FlightEvent
}

func (s *fakeSubscriber) Consume(ctx context.Context, handler repository.BatchHandler) error {
	for _, b := range s.batches {
		_ = handler(ctx, b)
	}
	return nil
}

func (s *fakeSubscriber) Close() error { return nil }

type serviceFixture struct {
	provider  *fakeProvider
	publisher *fakePublisher
	cache     *cache.ResultCache
	predictor *StatusPredictor
	metrics   *metrics.Metrics
	service   *FlightService
}

func newServiceFixture(flights []entity.Flight, cfg FlightServiceConfig) *serviceFixture {
	m := metrics.NewTestMetrics()
	log := logger.NewNopLogger()
	f := &serviceFixture{
		provider:  &fakeProvider{flights: flights},
		publisher: &fakePublisher{},
		cache:     cache.NewResultCache(500, 5*time.Minute, log, m),
		predictor: NewStatusPredictor(25, 42, log, m),
		metrics:   m,
	}
	if cfg.Topic == "" {
		cfg.Topic = "flights"
	}
	f.service = NewFlightService(f.provider, f.publisher, f.cache, f.predictor, cfg, log, m)
	return f
}
