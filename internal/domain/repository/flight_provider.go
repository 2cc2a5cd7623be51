package repository

import (
	"context"

	"flightstream-service/internal/domain/entity"
)

// FlightProvider defines the interface for fetching flights from the external provider.
// Failures are returned as *entity.UpstreamError.
type FlightProvider interface {
	Fetch(ctx context.Context, filters map[string]string) ([]entity.Flight, error)
}
