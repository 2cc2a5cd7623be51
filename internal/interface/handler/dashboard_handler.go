package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"flightstream-service/internal/infrastructure/broadcast"
	"flightstream-service/pkg/logger"
	"flightstream-service/templates"
)

const defaultHeartbeat = 15 * time.Second

// StreamSource hands out subscriptions to broadcast batches
type StreamSource interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

// DashboardHandler serves the dashboard page, its data and its live stream
type DashboardHandler struct {
	flights   FlightQueries
	stream    StreamSource
	heartbeat time.Duration
	logger    logger.Logger
}

// NewDashboardHandler creates a dashboard handler. A zero heartbeat uses 15s.
func NewDashboardHandler(flights FlightQueries, stream StreamSource, heartbeat time.Duration, logger logger.Logger) *DashboardHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &DashboardHandler{
		flights:   flights,
		stream:    stream,
		heartbeat: heartbeat,
		logger:    logger.With("component", "dashboard_handler"),
	}
}

// Page renders the dashboard HTML with the current batch
func (h *DashboardHandler) Page(c *gin.Context) {
	data := h.flights.DashboardData(c.Request.Context())
	h.logger.Debug("Dashboard rendered", "flights", len(data.Flights))
	c.HTML(http.StatusOK, templates.DashboardName, data)
}

// Data returns the dashboard data as JSON
func (h *DashboardHandler) Data(c *gin.Context) {
	RespondOK(c, h.flights.DashboardData(c.Request.Context()))
}

// Stream pushes one "flights" event per broadcast until the client leaves
func (h *DashboardHandler) Stream(c *gin.Context) {
	sub := h.stream.Subscribe()
	defer h.stream.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	h.logger.Debug("Stream client connected", "subscriberId", sub.ID)
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case batch, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("flights", batch)
			return true
		case <-heartbeat.C:
			_, err := fmt.Fprint(w, ": ping\n\n")
			return err == nil
		}
	})
	h.logger.Debug("Stream client disconnected", "subscriberId", sub.ID)
}

// RedirectToDashboard sends the root path to the dashboard
func RedirectToDashboard(c *gin.Context) {
	c.Redirect(http.StatusFound, "/dashboard")
}
