package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/internal/infrastructure/cache"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

// Provider query parameters used by the convenience searches
const (
	FilterAirlineIATA  = "airline_iata"
	FilterFlightNumber = "flight_number"
	FilterDepIATA      = "dep_iata"
	FilterArrIATA      = "arr_iata"
	FilterFlightStatus = "flight_status"
)

const publishTimeout = 30 * time.Second

// FlightCache is the fetch-through cache used for the unfiltered batch
type FlightCache interface {
	GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) ([]entity.Flight, error)) ([]entity.Flight, error)
}

// FlightServiceConfig holds the tunables of FlightService
type FlightServiceConfig struct {
	Topic             string
	BatchLimit        int
	RetrainOnRefresh  bool
	TrainingBatchSize int
}

// DashboardData is the dashboard view of the latest batch
type DashboardData struct {
	Flights        []entity.Flight `json:"flights"`
	ScheduledCount int             `json:"scheduledCount"`
	ActiveCount    int             `json:"activeCount"`
	LandedCount    int             `json:"landedCount"`
	CancelledCount int             `json:"cancelledCount"`
}

// FlightService fetches flights through the cache, publishes batches to the
// event log and annotates them with predicted statuses.
type FlightService struct {
	provider  repository.FlightProvider
	publisher repository.EventPublisher
	cache     FlightCache
	predictor *StatusPredictor
	cfg       FlightServiceConfig
	logger    logger.Logger
	metrics   *metrics.Metrics

	publishWG sync.WaitGroup
}

// NewFlightService creates a new flight service. A nil publisher disables publishing.
func NewFlightService(
	provider repository.FlightProvider,
	publisher repository.EventPublisher,
	results FlightCache,
	predictor *StatusPredictor,
	cfg FlightServiceConfig,
	logger logger.Logger,
	m *metrics.Metrics,
) *FlightService {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.TrainingBatchSize <= 0 {
		cfg.TrainingBatchSize = cfg.BatchLimit
	}
	return &FlightService{
		provider:  provider,
		publisher: publisher,
		cache:     results,
		predictor: predictor,
		cfg:       cfg,
		logger:    logger.With("component", "flight_service"),
		metrics:   m,
	}
}

// LoadFlights returns the cached unfiltered batch, fetching on a miss.
// Errors are returned so the scheduler can skip failed ticks.
func (s *FlightService) LoadFlights(ctx context.Context) ([]entity.Flight, error) {
	return s.cache.GetOrLoad(ctx, cache.KeyFor(nil), s.loadAll)
}

func (s *FlightService) loadAll(ctx context.Context) ([]entity.Flight, error) {
	flights, err := s.provider.Fetch(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Fetched flights", "count", len(flights))

	if s.cfg.RetrainOnRefresh && len(flights) > 0 {
		s.TrainFrom(flights)
	}
	return flights, nil
}

// GetFlights returns the cached unfiltered batch. Upstream failures yield an empty batch.
func (s *FlightService) GetFlights(ctx context.Context) []entity.Flight {
	flights, err := s.LoadFlights(ctx)
	if err != nil {
		s.logger.Error("Error fetching flights", "error", err)
		s.metrics.ErrorsCount.WithLabelValues("get_flights").Inc()
		return []entity.Flight{}
	}
	return flights
}

// SearchFlights forwards filters to the provider without touching the cache.
// Upstream failures yield an empty batch.
func (s *FlightService) SearchFlights(ctx context.Context, filters map[string]string) []entity.Flight {
	flights, err := s.provider.Fetch(ctx, filters)
	if err != nil {
		s.logger.Error("Error searching flights", "error", err, "filters", filters)
		s.metrics.ErrorsCount.WithLabelValues("search_flights").Inc()
		return []entity.Flight{}
	}
	s.PublishBatch(ctx, flights)
	return flights
}

// ActiveFlights returns flights currently in the air
func (s *FlightService) ActiveFlights(ctx context.Context) []entity.Flight {
	return s.SearchFlights(ctx, map[string]string{FilterFlightStatus: entity.StatusActive})
}

// LandedFlights returns flights that have landed
func (s *FlightService) LandedFlights(ctx context.Context) []entity.Flight {
	return s.SearchFlights(ctx, map[string]string{FilterFlightStatus: entity.StatusLanded})
}

// FlightsByAirline returns flights operated by the airline IATA code
func (s *FlightService) FlightsByAirline(ctx context.Context, code string) []entity.Flight {
	return s.SearchFlights(ctx, map[string]string{FilterAirlineIATA: code})
}

// FlightsByAirport returns flights departing from the airport IATA code
func (s *FlightService) FlightsByAirport(ctx context.Context, code string) []entity.Flight {
	return s.SearchFlights(ctx, map[string]string{FilterDepIATA: code})
}

// FlightsByNumber returns flights with the given flight number
func (s *FlightService) FlightsByNumber(ctx context.Context, number string) []entity.Flight {
	return s.SearchFlights(ctx, map[string]string{FilterFlightNumber: number})
}

// FlightsByStatus returns flights with the given status
func (s *FlightService) FlightsByStatus(ctx context.Context, status string) []entity.Flight {
	return s.SearchFlights(ctx, map[string]string{FilterFlightStatus: status})
}

// Select deduplicates a batch and caps it to the configured limit, keeping input order
func (s *FlightService) Select(flights []entity.Flight) []entity.Flight {
	return entity.LimitFlights(entity.DistinctFlights(flights), s.cfg.BatchLimit)
}

// Annotate returns copies of flights carrying their predicted status
func (s *FlightService) Annotate(flights []entity.Flight) []entity.Flight {
	return s.predictor.Annotate(flights)
}

// Prepare selects then annotates a batch
func (s *FlightService) Prepare(flights []entity.Flight) []entity.Flight {
	return s.Annotate(s.Select(flights))
}

// DashboardData returns the annotated latest batch with per-status counts.
// Predictions are recomputed on every call.
func (s *FlightService) DashboardData(ctx context.Context) DashboardData {
	flights := s.Prepare(s.GetFlights(ctx))
	data := DashboardData{Flights: flights}
	for i := range flights {
		switch strings.ToLower(flights[i].FlightStatus) {
		case entity.StatusScheduled:
			data.ScheduledCount++
		case entity.StatusActive:
			data.ActiveCount++
		case entity.StatusLanded:
			data.LandedCount++
		case entity.StatusCancelled:
			data.CancelledCount++
		}
	}
	return data
}

// Predict returns the predicted status for an airline and route
func (s *FlightService) Predict(airline, departure, arrival string) string {
	return s.predictor.PredictCodes(airline, departure, arrival)
}

// TrainFrom trains the predictor on the distinct head of flights
func (s *FlightService) TrainFrom(flights []entity.Flight) {
	training := entity.LimitFlights(entity.DistinctFlights(flights), s.cfg.TrainingBatchSize)
	s.logger.Info("Training with flights", "count", len(training))
	s.predictor.Train(training)
}

// TrainInitial trains the predictor from the current batch unless it is already trained
func (s *FlightService) TrainInitial(ctx context.Context) {
	flights := s.GetFlights(ctx)
	if s.predictor.Trained() {
		return
	}
	if len(flights) == 0 {
		s.logger.Warn("No flights available for initial training")
		return
	}
	s.TrainFrom(flights)
}

// PublishBatch hands each record to the publisher in batch order on a
// background goroutine. A failed record does not stop the rest.
func (s *FlightService) PublishBatch(ctx context.Context, flights []entity.Flight) {
	if s.publisher == nil || len(flights) == 0 {
		return
	}
	batch := entity.CloneFlights(flights)

	s.publishWG.Add(1)
	go func() {
		defer s.publishWG.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		failed := 0
		for i := range batch {
			key := batch[i].EventKey()
			if err := s.publisher.Publish(pubCtx, s.cfg.Topic, key, batch[i]); err != nil {
				failed++
				s.logger.Error("Error sending flight to event log", "key", key, "error", err)
			}
		}
		s.logger.Debug("Published flight batch", "count", len(batch), "failed", failed)
	}()
}

// WaitForPublishes blocks until every background publish has finished
func (s *FlightService) WaitForPublishes() {
	s.publishWG.Wait()
}
