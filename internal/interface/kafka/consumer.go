package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/pkg/logger"
)

const (
	defaultBatchSize  = 100
	defaultBatchWait  = 500 * time.Millisecond
	fetchErrorBackoff = 2 * time.Second
	commitTimeout     = 5 * time.Second
	readerMaxBytes    = 10e6
	readerMaxWait     = time.Second
)

// messageReader abstracts kafka.Reader for testability of commit behavior.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ConsumerConfig configures the consumer group reader
type ConsumerConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	BatchSize int
	BatchWait time.Duration
}

// Consumer drains the flight topic in batches and commits after each batch
type Consumer struct {
	reader    messageReader
	batchSize int
	batchWait time.Duration
	backoff   time.Duration
	now       func() time.Time
	logger    logger.Logger
}

var _ repository.EventSubscriber = (*Consumer)(nil)

// NewConsumer creates a consumer group member for cfg.Topic
func NewConsumer(cfg ConsumerConfig, log logger.Logger) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    readerMaxBytes,
		MaxWait:     readerMaxWait,
		StartOffset: kafkago.LastOffset,
	})
	return newConsumerWithReader(reader, cfg.BatchSize, cfg.BatchWait, log.With("component", "kafka_consumer", "topic", cfg.Topic))
}

func newConsumerWithReader(r messageReader, batchSize int, batchWait time.Duration, log logger.Logger) *Consumer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchWait <= 0 {
		batchWait = defaultBatchWait
	}
	return &Consumer{
		reader:    r,
		batchSize: batchSize,
		batchWait: batchWait,
		backoff:   fetchErrorBackoff,
		now:       time.Now,
		logger:    log,
	}
}

// Consume blocks until ctx is cancelled, handing each batch to handler.
// Handler errors are logged and the batch is committed regardless.
func (c *Consumer) Consume(ctx context.Context, handler repository.BatchHandler) error {
	for {
		msgs, err := c.fetchBatch(ctx)
		if ctx.Err() != nil {
			c.logger.Info("Kafka consumer loop stopping due to cancellation")
			return nil
		}
		if err != nil && len(msgs) == 0 {
			c.logger.Error("Kafka fetch failed", "error", err, "retryAfter", c.backoff)
			if !sleepWithContext(ctx, c.backoff) {
				return nil
			}
			continue
		}

		events := c.decode(msgs)
		if len(events) > 0 {
			if err := handler(ctx, events); err != nil {
				c.logger.Error("Batch handler failed", "error", err, "batchSize", len(events))
			}
		}

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		if err := c.reader.CommitMessages(commitCtx, msgs...); err != nil {
			c.logger.Error("Failed to commit Kafka offsets", "error", err, "batchSize", len(msgs))
		}
		cancel()
	}
}

// fetchBatch blocks for the first message, then collects more until the
// batch is full or batchWait elapses.
func (c *Consumer) fetchBatch(ctx context.Context) ([]kafkago.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs := []kafkago.Message{first}

	waitCtx, cancel := context.WithTimeout(ctx, c.batchWait)
	defer cancel()
	for len(msgs) < c.batchSize {
		msg, err := c.reader.FetchMessage(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || waitCtx.Err() != nil {
				break
			}
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *Consumer) decode(msgs []kafkago.Message) []entity.FlightEvent {
	consumedAt := c.now()
	events := make([]entity.FlightEvent, 0, len(msgs))
	for _, msg := range msgs {
		var flight entity.Flight
		if err := json.Unmarshal(msg.Value, &flight); err != nil {
			c.logger.Warn("Skipping undecodable flight message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
			continue
		}
		events = append(events, entity.FlightEvent{
			Key:        string(msg.Key),
			Partition:  msg.Partition,
			Offset:     strconv.FormatInt(msg.Offset, 10),
			Flight:     flight,
			ConsumedAt: consumedAt,
		})
	}
	return events
}

// Close leaves the consumer group
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
