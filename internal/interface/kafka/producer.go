package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

// messageWriter abstracts kafka.Writer for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer writes flight records to Kafka. Messages sharing a key land on the
// same partition, so a batch published in order keeps its order per key.
type Producer struct {
	writer  messageWriter
	logger  logger.Logger
	metrics *metrics.Metrics
}

var _ repository.EventPublisher = (*Producer)(nil)

// NewProducer creates an asynchronous producer. Delivery failures are reported
// through the writer's completion callback and never reach the caller.
func NewProducer(brokers []string, log logger.Logger, m *metrics.Metrics) *Producer {
	p := &Producer{
		logger:  log.With("component", "kafka_producer"),
		metrics: m,
	}
	p.writer = &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.onCompletion,
	}
	return p
}

func newProducerWithWriter(w messageWriter, log logger.Logger, m *metrics.Metrics) *Producer {
	return &Producer{writer: w, logger: log, metrics: m}
}

// Publish hands one record to the writer
func (p *Producer) Publish(ctx context.Context, topic, key string, flight entity.Flight) error {
	value, err := json.Marshal(flight)
	if err != nil {
		return fmt.Errorf("encoding flight %s: %w", key, err)
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing flight %s to %s: %w", key, topic, err)
	}

	p.logger.Debug("Sent flight to Kafka", "topic", topic, "key", key)
	return nil
}

func (p *Producer) onCompletion(messages []kafkago.Message, err error) {
	if err == nil {
		return
	}
	p.metrics.ErrorsCount.WithLabelValues("kafka_delivery").Add(float64(len(messages)))
	for _, msg := range messages {
		p.logger.Error("Failed to deliver flight to Kafka",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
	}
}

// Close flushes pending messages
func (p *Producer) Close() error {
	return p.writer.Close()
}
