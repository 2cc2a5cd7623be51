package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	failKey  string
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if string(m.Key) == w.failKey {
			return errors.New("broker unavailable")
		}
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

type fakeReader struct {
	ch        chan kafkago.Message
	mu        sync.Mutex
	committed []kafkago.Message
	commits   int
}

func newFakeReader(msgs ...kafkago.Message) *fakeReader {
	r := &fakeReader{ch: make(chan kafkago.Message, len(msgs))}
	for _, m := range msgs {
		r.ch <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.ch:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	r.commits++
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func flightMessage(t *testing.T, offset int64, date, dep string) kafkago.Message {
	t.Helper()
	f := entity.Flight{FlightDate: date, Departure: &entity.Departure{IATA: dep}, FlightStatus: "active"}
	value, err := json.Marshal(f)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(f.EventKey()), Value: value, Offset: offset, Partition: 2}
}

func TestProducerPublishEncodesFlight(t *testing.T) {
	w := &fakeWriter{}
	p := newProducerWithWriter(w, logger.NewNopLogger(), metrics.NewTestMetrics())

	f := entity.Flight{
		FlightDate:   "2024-05-01",
		FlightStatus: "landed",
		Departure:    &entity.Departure{IATA: "JFK", EstimatedRunway: "10:00"},
		Live:         &entity.Live{SpeedHorizontal: 12.5, IsGround: true},
	}
	require.NoError(t, p.Publish(context.Background(), "flights", f.EventKey(), f))
	require.NoError(t, p.Close())

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "flights", msg.Topic)
	assert.Equal(t, "2024-05-01-JFK", string(msg.Key))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &raw))
	assert.Equal(t, "2024-05-01", raw["flight_date"])
	assert.Equal(t, "landed", raw["flight_status"])
	assert.Equal(t, "10:00", raw["departure"].(map[string]any)["estimated_runway"])
	live := raw["live"].(map[string]any)
	assert.Equal(t, 12.5, live["speed_horizontal"])
	assert.Equal(t, true, live["is_ground"])
	assert.Contains(t, live, "speed_vertical")
	assert.True(t, w.closed)
}

func TestProducerPublishFailureIsPerRecord(t *testing.T) {
	w := &fakeWriter{failKey: "unknown-unknown"}
	p := newProducerWithWriter(w, logger.NewNopLogger(), metrics.NewTestMetrics())

	batch := []entity.Flight{
		{FlightDate: "2024-05-01", Departure: &entity.Departure{IATA: "JFK"}},
		{},
		{FlightDate: "2024-05-01", Departure: &entity.Departure{IATA: "IST"}},
	}
	var failures int
	for _, f := range batch {
		if err := p.Publish(context.Background(), "flights", f.EventKey(), f); err != nil {
			failures++
		}
	}

	assert.Equal(t, 1, failures)
	require.Len(t, w.messages, 2)
	assert.Equal(t, "2024-05-01-JFK", string(w.messages[0].Key))
	assert.Equal(t, "2024-05-01-IST", string(w.messages[1].Key))
}

func TestConsumerBatchesAndCommits(t *testing.T) {
	r := newFakeReader(
		flightMessage(t, 10, "2024-05-01", "JFK"),
		flightMessage(t, 11, "2024-05-01", "LAX"),
		kafkago.Message{Key: []byte("bad"), Value: []byte("{not json"), Offset: 12},
		flightMessage(t, 13, "", "IST"),
	)
	c := newConsumerWithReader(r, 10, 20*time.Millisecond, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []entity.FlightEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, func(ctx context.Context, events []entity.FlightEvent) error {
			batches <- events
			return nil
		})
	}()

	var events []entity.FlightEvent
	select {
	case events = <-batches:
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}

	require.Len(t, events, 3)
	assert.Equal(t, "2024-05-01-JFK", events[0].Key)
	assert.Equal(t, "10", events[0].Offset)
	assert.Equal(t, 2, events[0].Partition)
	assert.Equal(t, "LAX", events[1].Flight.DepartureIATA())
	assert.Equal(t, "unknown-IST", events[2].Key)

	assert.Eventually(t, func() bool { return r.committedCount() == 4 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerCommitsWhenHandlerFails(t *testing.T) {
	r := newFakeReader(flightMessage(t, 1, "2024-05-01", "JFK"))
	c := newConsumerWithReader(r, 1, 10*time.Millisecond, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	called := make(chan struct{}, 1)
	go func() {
		_ = c.Consume(ctx, func(ctx context.Context, events []entity.FlightEvent) error {
			called <- struct{}{}
			return errors.New("archive down")
		})
	}()

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Eventually(t, func() bool { return r.committedCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestConsumerSplitsAtBatchSize(t *testing.T) {
	r := newFakeReader(
		flightMessage(t, 1, "2024-05-01", "AAA"),
		flightMessage(t, 2, "2024-05-01", "BBB"),
		flightMessage(t, 3, "2024-05-01", "CCC"),
	)
	c := newConsumerWithReader(r, 2, 20*time.Millisecond, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sizes := make(chan int, 4)
	go func() {
		_ = c.Consume(ctx, func(ctx context.Context, events []entity.FlightEvent) error {
			sizes <- len(events)
			return nil
		})
	}()

	for _, want := range []int{2, 1} {
		select {
		case got := <-sizes:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("batch not delivered")
		}
	}
}
