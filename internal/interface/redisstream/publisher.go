package redisstream

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"
	"flightstream-service/pkg/logger"
)

// Publisher appends flight records to a redis stream named after the topic.
// A stream is a single ordered log, so batch order holds for every key.
type Publisher struct {
	rdb    streamClient
	maxLen int64
	logger logger.Logger
}

var _ repository.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a stream publisher
func NewPublisher(rdb streamClient, log logger.Logger) *Publisher {
	return &Publisher{
		rdb:    rdb,
		maxLen: defaultMaxLen,
		logger: log.With("component", "redis_publisher"),
	}
}

// Publish appends one record
func (p *Publisher) Publish(ctx context.Context, topic, key string, flight entity.Flight) error {
	value, err := json.Marshal(flight)
	if err != nil {
		return fmt.Errorf("encoding flight %s: %w", key, err)
	}

	id, err := p.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: topic,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			fieldKey:   key,
			fieldValue: string(value),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd flight %s to %s: %w", key, topic, err)
	}

	p.logger.Debug("Sent flight to Redis stream", "stream", topic, "key", key, "id", id)
	return nil
}

// Close releases the client
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
