package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 500, cfg.CacheCapacity)
	assert.Equal(t, 30*time.Second, cfg.BroadcastInterval)
	assert.Equal(t, 100, cfg.BroadcastBatchLimit)
	assert.Equal(t, DefaultPageSize, cfg.UpstreamPageSize)
	assert.Equal(t, 100, cfg.PredictorTrees)
	assert.Equal(t, EventBusKafka, cfg.EventBus)
	assert.Equal(t, "flights", cfg.KafkaTopic)
	assert.Equal(t, ArchiveNone, cfg.ArchiveDriver)
	assert.True(t, cfg.PredictorRetrainOnRefresh)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.StreamHeartbeat)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("CACHE_CAPACITY", "10")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("EVENT_BUS", "REDIS")
	t.Setenv("PREDICTOR_RETRAIN_ON_REFRESH", "false")
	t.Setenv("CONSUMER_BATCH_WAIT_MS", "250")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 10, cfg.CacheCapacity)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, EventBusRedis, cfg.EventBus)
	assert.False(t, cfg.PredictorRetrainOnRefresh)
	assert.Equal(t, 250*time.Millisecond, cfg.ConsumerBatchWait)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown bus", "EVENT_BUS", "carrier-pigeon"},
		{"unknown archive", "ARCHIVE_DRIVER", "tape"},
		{"postgres without dsn", "ARCHIVE_DRIVER", "postgres"},
		{"page size too large", "UPSTREAM_PAGE_SIZE", "5000"},
		{"zero ttl", "CACHE_TTL", "0"},
		{"zero interval", "BROADCAST_INTERVAL", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
