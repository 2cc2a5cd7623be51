package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/usecase"
	"flightstream-service/pkg/logger"
)

// FlightQueries is the read side of the flight service used by the HTTP layer
type FlightQueries interface {
	GetFlights(ctx context.Context) []entity.Flight
	SearchFlights(ctx context.Context, filters map[string]string) []entity.Flight
	FlightsByAirline(ctx context.Context, code string) []entity.Flight
	FlightsByAirport(ctx context.Context, code string) []entity.Flight
	FlightsByNumber(ctx context.Context, number string) []entity.Flight
	FlightsByStatus(ctx context.Context, status string) []entity.Flight
	DashboardData(ctx context.Context) usecase.DashboardData
	Predict(airline, departure, arrival string) string
}

// searchParams maps public query names to provider filter names
var searchParams = []struct {
	query  string
	filter string
}{
	{"airline", usecase.FilterAirlineIATA},
	{"flight_number", usecase.FilterFlightNumber},
	{"departure", usecase.FilterDepIATA},
	{"arrival", usecase.FilterArrIATA},
	{"status", usecase.FilterFlightStatus},
}

// PredictionResponse is returned by the predict endpoint
type PredictionResponse struct {
	Airline         string `json:"airline"`
	Departure       string `json:"departure"`
	Arrival         string `json:"arrival"`
	PredictedStatus string `json:"predicted_status"`
}

// FlightHandler serves the flight JSON API
type FlightHandler struct {
	flights FlightQueries
	logger  logger.Logger
}

// NewFlightHandler creates a new flight handler
func NewFlightHandler(flights FlightQueries, logger logger.Logger) *FlightHandler {
	return &FlightHandler{
		flights: flights,
		logger:  logger.With("component", "flight_handler"),
	}
}

// List returns the cached unfiltered batch
func (h *FlightHandler) List(c *gin.Context) {
	RespondOK(c, h.flights.GetFlights(c.Request.Context()))
}

// Search forwards the non-empty query parameters as provider filters
func (h *FlightHandler) Search(c *gin.Context) {
	filters := make(map[string]string)
	for _, p := range searchParams {
		if v := strings.TrimSpace(c.Query(p.query)); v != "" {
			filters[p.filter] = v
		}
	}
	h.logger.Debug("Searching flights", "filters", filters)
	RespondOK(c, h.flights.SearchFlights(c.Request.Context(), filters))
}

// ByAirline returns flights for an airline IATA code
func (h *FlightHandler) ByAirline(c *gin.Context) {
	RespondOK(c, h.flights.FlightsByAirline(c.Request.Context(), strings.ToUpper(c.Param("code"))))
}

// ByAirport returns flights departing from an airport IATA code
func (h *FlightHandler) ByAirport(c *gin.Context) {
	RespondOK(c, h.flights.FlightsByAirport(c.Request.Context(), strings.ToUpper(c.Param("code"))))
}

// ByNumber returns flights with the given number
func (h *FlightHandler) ByNumber(c *gin.Context) {
	RespondOK(c, h.flights.FlightsByNumber(c.Request.Context(), c.Param("flightNumber")))
}

// ByStatus returns flights with the given status
func (h *FlightHandler) ByStatus(c *gin.Context) {
	RespondOK(c, h.flights.FlightsByStatus(c.Request.Context(), strings.ToLower(c.Param("status"))))
}

// Predict returns the predicted status for an airline and route
func (h *FlightHandler) Predict(c *gin.Context) {
	airline := strings.ToUpper(strings.TrimSpace(c.Query("airline")))
	departure := strings.ToUpper(strings.TrimSpace(c.Query("departure")))
	arrival := strings.ToUpper(strings.TrimSpace(c.Query("arrival")))
	if airline == "" || departure == "" || arrival == "" {
		RespondError(c, http.StatusBadRequest, "missing_parameter", "airline, departure and arrival are required")
		return
	}

	RespondOK(c, PredictionResponse{
		Airline:         airline,
		Departure:       departure,
		Arrival:         arrival,
		PredictedStatus: h.flights.Predict(airline, departure, arrival),
	})
}
