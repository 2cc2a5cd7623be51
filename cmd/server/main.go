package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightstream-service/internal/domain/repository"
	"flightstream-service/internal/infrastructure/broadcast"
	"flightstream-service/internal/infrastructure/cache"
	"flightstream-service/internal/infrastructure/config"
	"flightstream-service/internal/infrastructure/oauth"
	"flightstream-service/internal/infrastructure/persistence"
	"flightstream-service/internal/infrastructure/router"
	"flightstream-service/internal/interface/aviationstack"
	"flightstream-service/internal/interface/handler"
	"flightstream-service/internal/interface/kafka"
	"flightstream-service/internal/interface/redisstream"
	archiveRepo "flightstream-service/internal/interface/repository"
	"flightstream-service/internal/usecase"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Flightstream Service", "version", cfg.AppVersion)

	m := metrics.NewMetrics(cfg.MetricsNamespace, nil)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up the upstream provider
	clientOpts := []aviationstack.ClientOption{
		aviationstack.WithBaseURL(cfg.UpstreamBaseURL),
		aviationstack.WithPageSize(cfg.UpstreamPageSize),
		aviationstack.WithRateLimit(cfg.UpstreamRatePerSec),
	}
	if upstreamOAuth := oauth.NewUpstreamOAuth(cfg.UpstreamTokenURL, cfg.UpstreamClientID, cfg.UpstreamClientSecret, log); upstreamOAuth != nil {
		clientOpts = append(clientOpts, aviationstack.WithHTTPClient(upstreamOAuth.HTTPClient(ctx, cfg.UpstreamTimeout)))
	}
	clientOpts = append(clientOpts, aviationstack.WithTimeout(cfg.UpstreamTimeout))
	if cfg.UpstreamAccessKey == "" {
		log.Warn("UPSTREAM_ACCESS_KEY is empty; provider requests will be rejected")
	}
	provider := usecase.NewInstrumentedFlightProvider(
		aviationstack.NewClient(cfg.UpstreamAccessKey, clientOpts...), log, m)

	// Set up the event log
	publisher, subscriber, err := newEventBus(ctx, cfg, log, m)
	if err != nil {
		log.Fatal("Failed to set up event bus", "bus", cfg.EventBus, "error", err)
	}
	var eventPublisher repository.EventPublisher
	if publisher != nil {
		eventPublisher = usecase.NewInstrumentedPublisher(publisher, log, m)
	}

	// Set up the flight pipeline
	resultCache := cache.NewResultCache(cfg.CacheCapacity, cfg.CacheTTL, log, m)
	predictor := usecase.NewStatusPredictor(cfg.PredictorTrees, cfg.PredictorSeed, log, m)
	flightService := usecase.NewFlightService(provider, eventPublisher, resultCache, predictor, usecase.FlightServiceConfig{
		Topic:            cfg.KafkaTopic,
		BatchLimit:       cfg.BroadcastBatchLimit,
		RetrainOnRefresh: cfg.PredictorRetrainOnRefresh,
	}, log, m)

	hub := broadcast.NewHub(cfg.SubscriberBuffer, log, m)
	scheduler := usecase.NewBroadcastScheduler(flightService, hub, cfg.BroadcastInterval, log, m)

	// The archive backs the consumer and the archive read route
	archive, err := newArchive(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to set up archive", "driver", cfg.ArchiveDriver, "error", err)
	}

	// Start the event consumer in a goroutine
	if subscriber != nil {
		consumer := usecase.NewFlightEventConsumer(subscriber, archive, log, m)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Flight event consumer stopped", "error", err)
			}
		}()
	}

	// Train on the first batch, then start broadcasting
	flightService.TrainInitial(ctx)
	go scheduler.Run(ctx)

	// Set up HTTP server
	gin.SetMode(gin.ReleaseMode)
	engine := router.NewRouter(router.RouterConfig{
		FlightHandler:    handler.NewFlightHandler(flightService, log),
		DashboardHandler: handler.NewDashboardHandler(flightService, hub, cfg.StreamHeartbeat, log),
		ArchiveHandler:   handler.NewArchiveHandler(archive, log),
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		Logger:           log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Open streams only end once the hub closes
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines

	flightService.WaitForPublishes()
	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			log.Error("Event publisher close error", "error", err)
		}
	}
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Error("Event subscriber close error", "error", err)
		}
	}
	if archive != nil {
		if err := archive.Close(shutdownCtx); err != nil {
			log.Error("Archive close error", "error", err)
		}
	}

	log.Info("Flightstream Service stopped")
}

// newEventBus builds the publisher and subscriber for the configured bus.
// Both are nil for the "none" bus; the subscriber is nil when consuming is disabled.
func newEventBus(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics) (repository.EventPublisher, repository.EventSubscriber, error) {
	switch cfg.EventBus {
	case config.EventBusKafka:
		publisher := kafka.NewProducer(cfg.KafkaBrokers, log, m)
		if !cfg.ConsumerEnabled {
			return publisher, nil, nil
		}
		subscriber := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:   cfg.KafkaBrokers,
			Topic:     cfg.KafkaTopic,
			GroupID:   cfg.KafkaGroupID,
			BatchSize: cfg.ConsumerBatchSize,
			BatchWait: cfg.ConsumerBatchWait,
		}, log)
		return publisher, subscriber, nil

	case config.EventBusRedis:
		opts := redisstream.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		pubClient, err := redisstream.Connect(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		publisher := redisstream.NewPublisher(pubClient, log)
		if !cfg.ConsumerEnabled {
			return publisher, nil, nil
		}
		subClient, err := redisstream.Connect(ctx, opts)
		if err != nil {
			_ = publisher.Close()
			return nil, nil, err
		}
		subscriber := redisstream.NewConsumer(subClient, redisstream.ConsumerConfig{
			Stream:    cfg.KafkaTopic,
			Group:     cfg.KafkaGroupID,
			BatchSize: cfg.ConsumerBatchSize,
			BatchWait: cfg.ConsumerBatchWait,
		}, log)
		return publisher, subscriber, nil

	case config.EventBusNone:
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown event bus %q", cfg.EventBus)
}

// newArchive opens the configured archive. It returns nil for the "none" driver.
func newArchive(ctx context.Context, cfg *config.Config) (repository.FlightEventRepository, error) {
	switch cfg.ArchiveDriver {
	case config.ArchiveMongo:
		client, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			return nil, err
		}
		return archiveRepo.NewMongoFlightEventRepository(ctx, persistence.GetDatabase(client, cfg.MongoDB))
	case config.ArchivePostgres:
		db, err := persistence.NewPostgresDB(cfg.PostgresURI)
		if err != nil {
			return nil, err
		}
		return archiveRepo.NewGormFlightEventRepository(db)
	}
	return nil, nil
}
