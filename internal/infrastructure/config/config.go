// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Event bus drivers
const (
	EventBusKafka = "kafka"
	EventBusRedis = "redis"
	EventBusNone  = "none"
)

// Archive drivers
const (
	ArchiveNone     = "none"
	ArchiveMongo    = "mongo"
	ArchivePostgres = "postgres"
)

// DefaultPageSize is the number of flights requested by an unfiltered fetch.
// The provider accepts up to MaxPageSize.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion       string
	LogLevel         string
	MetricsNamespace string

	// Server
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	StreamHeartbeat    time.Duration

	// Upstream provider
	UpstreamBaseURL      string
	UpstreamAccessKey    string
	UpstreamPageSize     int
	UpstreamTimeout      time.Duration
	UpstreamRatePerSec   float64
	UpstreamTokenURL     string
	UpstreamClientID     string
	UpstreamClientSecret string

	// Result cache
	CacheTTL      time.Duration
	CacheCapacity int

	// Broadcast
	BroadcastInterval   time.Duration
	BroadcastBatchLimit int
	SubscriberBuffer    int

	// Predictor
	PredictorTrees            int
	PredictorSeed             int64
	PredictorRetrainOnRefresh bool

	// Event bus
	EventBus          string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	ConsumerEnabled   bool
	ConsumerBatchSize int
	ConsumerBatchWait time.Duration

	// Archive
	ArchiveDriver string
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string
	PostgresURI   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:       getEnv("APP_VERSION", "1.0.0"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "flightstream"),

		// A zero write timeout keeps the dashboard stream open
		Port:               getEnv("PORT", "8080"),
		ReadTimeout:        time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout:       time.Duration(getEnvAsInt("WRITE_TIMEOUT", 0)) * time.Second,
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		StreamHeartbeat:    time.Duration(getEnvAsInt("STREAM_HEARTBEAT", 15)) * time.Second,

		UpstreamBaseURL:      getEnv("UPSTREAM_BASE_URL", "https://api.aviationstack.com"),
		UpstreamAccessKey:    getEnv("UPSTREAM_ACCESS_KEY", ""),
		UpstreamPageSize:     getEnvAsInt("UPSTREAM_PAGE_SIZE", DefaultPageSize),
		UpstreamTimeout:      time.Duration(getEnvAsInt("UPSTREAM_TIMEOUT", 15)) * time.Second,
		UpstreamRatePerSec:   getEnvAsFloat("UPSTREAM_RATE_PER_SEC", 2),
		UpstreamTokenURL:     getEnv("UPSTREAM_TOKEN_URL", ""),
		UpstreamClientID:     getEnv("UPSTREAM_CLIENT_ID", ""),
		UpstreamClientSecret: getEnv("UPSTREAM_CLIENT_SECRET", ""),

		CacheTTL:      time.Duration(getEnvAsInt("CACHE_TTL", 300)) * time.Second,
		CacheCapacity: getEnvAsInt("CACHE_CAPACITY", 500),

		BroadcastInterval:   time.Duration(getEnvAsInt("BROADCAST_INTERVAL", 30)) * time.Second,
		BroadcastBatchLimit: getEnvAsInt("BROADCAST_BATCH_LIMIT", 100),
		SubscriberBuffer:    getEnvAsInt("SUBSCRIBER_BUFFER", 4),

		PredictorTrees:            getEnvAsInt("PREDICTOR_TREES", 100),
		PredictorSeed:             int64(getEnvAsInt("PREDICTOR_SEED", 42)),
		PredictorRetrainOnRefresh: getEnvAsBool("PREDICTOR_RETRAIN_ON_REFRESH", true),

		EventBus:          strings.ToLower(getEnv("EVENT_BUS", EventBusKafka)),
		KafkaBrokers:      getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "flights"),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "flightstream-consumer"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		ConsumerEnabled:   getEnvAsBool("CONSUMER_ENABLED", true),
		ConsumerBatchSize: getEnvAsInt("CONSUMER_BATCH_SIZE", 100),
		ConsumerBatchWait: time.Duration(getEnvAsInt("CONSUMER_BATCH_WAIT_MS", 500)) * time.Millisecond,

		ArchiveDriver: strings.ToLower(getEnv("ARCHIVE_DRIVER", ArchiveNone)),
		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "flightstream"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),
		PostgresURI:   getEnv("POSTGRES_DSN", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("BROADCAST_INTERVAL must be positive")
	}
	if c.BroadcastBatchLimit <= 0 {
		return fmt.Errorf("BROADCAST_BATCH_LIMIT must be positive")
	}
	if c.UpstreamPageSize <= 0 || c.UpstreamPageSize > MaxPageSize {
		return fmt.Errorf("UPSTREAM_PAGE_SIZE must be between 1 and %d", MaxPageSize)
	}
	if c.PredictorTrees <= 0 {
		return fmt.Errorf("PREDICTOR_TREES must be positive")
	}
	switch c.EventBus {
	case EventBusKafka, EventBusRedis, EventBusNone:
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}
	switch c.ArchiveDriver {
	case ArchiveNone, ArchiveMongo:
	case ArchivePostgres:
		if c.PostgresURI == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres archive")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.ArchiveDriver)
	}
	return nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
