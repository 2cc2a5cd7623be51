package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/pkg/logger"
)

const (
	readErrorBackoff = 2 * time.Second
	ackTimeout       = 5 * time.Second
)

// ConsumerConfig configures the consumer group member
type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	BatchSize int
	BatchWait time.Duration
}

// Consumer drains a redis stream through a consumer group
type Consumer struct {
	rdb     streamClient
	cfg     ConsumerConfig
	backoff time.Duration
	now     func() time.Time
	logger  logger.Logger
}

var _ repository.EventSubscriber = (*Consumer)(nil)

// NewConsumer creates a consumer; the group is created on first Consume
func NewConsumer(rdb streamClient, cfg ConsumerConfig, log logger.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = 500 * time.Millisecond
	}
	if cfg.Consumer == "" {
		cfg.Consumer = cfg.Group + "-1"
	}
	return &Consumer{
		rdb:     rdb,
		cfg:     cfg,
		backoff: readErrorBackoff,
		now:     time.Now,
		logger:  log.With("component", "redis_consumer", "stream", cfg.Stream),
	}
}

// Consume blocks until ctx is cancelled. Every read batch is acknowledged
// after the handler returns, whether or not it succeeded.
func (c *Consumer) Consume(ctx context.Context, handler repository.BatchHandler) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group %s: %w", c.cfg.Group, err)
	}

	for {
		if ctx.Err() != nil {
			c.logger.Info("Redis consumer loop stopping due to cancellation")
			return nil
		}

		streams, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    int64(c.cfg.BatchSize),
			Block:    c.cfg.BatchWait,
		}).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("Redis stream read failed", "error", err, "retryAfter", c.backoff)
			if !sleepWithContext(ctx, c.backoff) {
				return nil
			}
			continue
		}

		for _, stream := range streams {
			c.handle(ctx, stream, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, stream goredis.XStream, handler repository.BatchHandler) {
	if len(stream.Messages) == 0 {
		return
	}

	consumedAt := c.now()
	ids := make([]string, 0, len(stream.Messages))
	events := make([]entity.FlightEvent, 0, len(stream.Messages))
	for _, msg := range stream.Messages {
		ids = append(ids, msg.ID)

		key, _ := msg.Values[fieldKey].(string)
		value, _ := msg.Values[fieldValue].(string)
		var flight entity.Flight
		if err := json.Unmarshal([]byte(value), &flight); err != nil {
			c.logger.Warn("Skipping undecodable flight message", "id", msg.ID, "key", key, "error", err)
			continue
		}
		events = append(events, entity.FlightEvent{
			Key:        key,
			Offset:     msg.ID,
			Flight:     flight,
			ConsumedAt: consumedAt,
		})
	}

	if len(events) > 0 {
		if err := handler(ctx, events); err != nil {
			c.logger.Error("Batch handler failed", "error", err, "batchSize", len(events))
		}
	}

	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := c.rdb.XAck(ackCtx, stream.Stream, c.cfg.Group, ids...).Err(); err != nil {
		c.logger.Error("Failed to ack stream entries", "error", err, "count", len(ids))
	}
}

// Close releases the client
func (c *Consumer) Close() error {
	return c.rdb.Close()
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
