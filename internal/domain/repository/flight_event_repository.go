package repository

import (
	"context"

	"flightstream-service/internal/domain/entity"
)

// FlightEventRepository defines the interface for archiving consumed flight events
type FlightEventRepository interface {
	UpsertBatch(ctx context.Context, events []entity.FlightEvent) error
	FindByKey(ctx context.Context, key string) (*entity.FlightEvent, error)
	Close(ctx context.Context) error
}
