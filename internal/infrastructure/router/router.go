package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flightstream-service/internal/interface/handler"
	"flightstream-service/pkg/logger"
	"flightstream-service/templates"
)

// RouterConfig carries the handlers mounted by NewRouter
type RouterConfig struct {
	FlightHandler    *handler.FlightHandler
	DashboardHandler *handler.DashboardHandler
	ArchiveHandler   *handler.ArchiveHandler
	AllowedOrigins   []string
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
}

// NewRouter builds the HTTP engine
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware(cfg.AllowedOrigins))
	router.SetHTMLTemplate(templates.Dashboard())

	metricsHandler := promhttp.Handler()
	if cfg.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metricsHandler))

	// Dashboard
	router.GET("/", handler.RedirectToDashboard)
	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("", cfg.DashboardHandler.Page)
		dashboard.GET("/data", cfg.DashboardHandler.Data)
		dashboard.GET("/stream", cfg.DashboardHandler.Stream)
	}

	// Flights API
	flights := router.Group("/api/flights")
	{
		flights.GET("", cfg.FlightHandler.List)
		flights.GET("/search", cfg.FlightHandler.Search)
		flights.GET("/airline/:code", cfg.FlightHandler.ByAirline)
		flights.GET("/airport/:code", cfg.FlightHandler.ByAirport)
		flights.GET("/number/:flightNumber", cfg.FlightHandler.ByNumber)
		flights.GET("/status/:status", cfg.FlightHandler.ByStatus)
		flights.GET("/predict", cfg.FlightHandler.Predict)
		flights.GET("/archive/:key", cfg.ArchiveHandler.ByKey)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Writer.Status() >= 500 {
			log.Error("Request failed", fields...)
			return
		}
		log.Debug("Request served", fields...)
	}
}
