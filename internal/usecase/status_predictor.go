package usecase

import (
	"fmt"
	"sync"
	"sync/atomic"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/pkg/forest"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

// Prediction sentinels returned instead of errors
const (
	PredictionNotTrained   = "Unknown (Model not trained)"
	PredictionInvalidInput = "Unknown (Missing or invalid data)"
	PredictionFailed       = "Unknown (Prediction error)"
)

// FallbackCategory is the vocabulary entry for absent or unseen codes
const FallbackCategory = "N/A"

// vocabulary maps categorical codes to feature indices. The fallback is always last.
type vocabulary map[string]int

func buildVocabulary(codes []string) vocabulary {
	v := make(vocabulary, len(codes)+1)
	for _, code := range codes {
		if code == "" || code == FallbackCategory {
			continue
		}
		if _, ok := v[code]; !ok {
			v[code] = len(v)
		}
	}
	v[FallbackCategory] = len(v)
	return v
}

func (v vocabulary) index(code string) int {
	if i, ok := v[code]; ok && code != "" {
		return i
	}
	return v[FallbackCategory]
}

// classifierState is replaced wholesale on every successful training run
type classifierState struct {
	airlines   vocabulary
	departures vocabulary
	arrivals   vocabulary
	model      *forest.Forest
	samples    int
}

func (s *classifierState) encode(f *entity.Flight) []int {
	return []int{
		s.airlines.index(f.AirlineIATA()),
		s.departures.index(f.DepartureIATA()),
		s.arrivals.index(f.ArrivalIATA()),
	}
}

// statusIndex is the fixed class mapping shared by training and inference
var statusIndex = func() map[string]int {
	m := make(map[string]int, len(entity.KnownStatuses))
	for i, s := range entity.KnownStatuses {
		m[s] = i
	}
	return m
}()

// StatusPredictor predicts flight status from airline, departure and arrival codes
type StatusPredictor struct {
	state   atomic.Pointer[classifierState]
	trainMu sync.Mutex
	cfg     forest.Config
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewStatusPredictor creates an untrained predictor
func NewStatusPredictor(trees int, seed int64, log logger.Logger, m *metrics.Metrics) *StatusPredictor {
	return &StatusPredictor{
		cfg:     forest.Config{Trees: trees, Seed: seed},
		logger:  log.With("component", "status_predictor"),
		metrics: m,
	}
}

// Trained reports whether a model is available
func (p *StatusPredictor) Trained() bool {
	return p.state.Load() != nil
}

// Train rebuilds vocabularies and the model from the valid flights in batch.
// A batch with no valid flights, or a failed fit, keeps the previous state.
func (p *StatusPredictor) Train(batch []entity.Flight) {
	p.trainMu.Lock()
	defer p.trainMu.Unlock()

	valid := make([]*entity.Flight, 0, len(batch))
	for i := range batch {
		if batch[i].IsValidForPrediction() {
			valid = append(valid, &batch[i])
		}
	}
	if len(valid) == 0 {
		p.logger.Warn("No valid flights to train on", "batchSize", len(batch))
		p.metrics.TrainingRuns.WithLabelValues("skipped").Inc()
		return
	}

	airlines := make([]string, len(valid))
	departures := make([]string, len(valid))
	arrivals := make([]string, len(valid))
	for i, f := range valid {
		airlines[i] = f.AirlineIATA()
		departures[i] = f.DepartureIATA()
		arrivals[i] = f.ArrivalIATA()
	}
	next := &classifierState{
		airlines:   buildVocabulary(airlines),
		departures: buildVocabulary(departures),
		arrivals:   buildVocabulary(arrivals),
		samples:    len(valid),
	}

	x := make([][]int, len(valid))
	y := make([]int, len(valid))
	for i, f := range valid {
		x[i] = next.encode(f)
		y[i] = statusIndex[f.NormalizedStatus()]
	}

	model, err := p.fit(x, y)
	if err != nil {
		p.logger.Error("Failed to train status model", "error", err, "samples", len(valid))
		p.metrics.TrainingRuns.WithLabelValues("failure").Inc()
		p.metrics.ErrorsCount.WithLabelValues("train").Inc()
		return
	}
	next.model = model

	p.state.Store(next)
	p.metrics.TrainingRuns.WithLabelValues("success").Inc()
	p.logger.Info("Status model trained",
		"samples", len(valid),
		"airlines", len(next.airlines),
		"departures", len(next.departures),
		"arrivals", len(next.arrivals),
	)
}

func (p *StatusPredictor) fit(x [][]int, y []int) (model *forest.Forest, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forest fit panicked: %v", r)
		}
	}()
	return forest.Fit(x, y, len(entity.KnownStatuses), p.cfg)
}

// Predict returns the predicted status label or one of the prediction sentinels
func (p *StatusPredictor) Predict(f *entity.Flight) string {
	state := p.state.Load()
	if state == nil {
		p.metrics.Predictions.WithLabelValues("not_trained").Inc()
		return PredictionNotTrained
	}
	if !f.IsValidForPrediction() {
		p.metrics.Predictions.WithLabelValues("invalid").Inc()
		return PredictionInvalidInput
	}

	label, err := p.infer(state, state.encode(f))
	if err != nil {
		p.logger.Error("Status prediction failed", "error", err, "key", f.EventKey())
		p.metrics.Predictions.WithLabelValues("error").Inc()
		return PredictionFailed
	}
	p.metrics.Predictions.WithLabelValues("success").Inc()
	return label
}

// PredictCodes predicts for a bare airline/departure/arrival combination.
// The status requirement of Predict does not apply here.
func (p *StatusPredictor) PredictCodes(airline, departure, arrival string) string {
	return p.Predict(&entity.Flight{
		FlightStatus: entity.StatusScheduled,
		Airline:      &entity.Airline{IATA: airline},
		Departure:    &entity.Departure{IATA: departure},
		Arrival:      &entity.Arrival{IATA: arrival},
	})
}

func (p *StatusPredictor) infer(state *classifierState, features []int) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forest predict panicked: %v", r)
		}
	}()
	class, err := state.model.Predict(features)
	if err != nil {
		return "", err
	}
	if class < 0 || class >= len(entity.KnownStatuses) {
		return "", fmt.Errorf("class index %d out of range", class)
	}
	return entity.KnownStatuses[class], nil
}

// Annotate returns deep copies of flights with PredictedStatus set.
// The input batch is left untouched.
func (p *StatusPredictor) Annotate(flights []entity.Flight) []entity.Flight {
	out := entity.CloneFlights(flights)
	for i := range out {
		out[i].PredictedStatus = p.Predict(&out[i])
	}
	return out
}
