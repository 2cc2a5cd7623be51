package repository

import (
	"context"
	"errors"
	"time"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoFlightEventRepository keeps the latest consumed snapshot per event key
type MongoFlightEventRepository struct {
	collection *mongo.Collection
}

// NewMongoFlightEventRepository creates a new flight event archive
func NewMongoFlightEventRepository(ctx context.Context, db *mongo.Database) (repository.FlightEventRepository, error) {
	collection := db.Collection("flight_events")

	// Create unique index on key
	keyIndex := mongo.IndexModel{
		Keys:    bson.M{"key": 1},
		Options: options.Index().SetUnique(true),
	}

	// Index on departure for airport lookups
	departureIndex := mongo.IndexModel{
		Keys: bson.M{"flight.departure.iata": 1},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{keyIndex, departureIndex}); err != nil {
		return nil, err
	}

	return &MongoFlightEventRepository{
		collection: collection,
	}, nil
}

// UpsertBatch writes every event in one unordered bulk write
func (r *MongoFlightEventRepository) UpsertBatch(ctx context.Context, events []entity.FlightEvent) error {
	if len(events) == 0 {
		return nil
	}
	opts := options.BulkWrite().SetOrdered(false)
	_, err := r.collection.BulkWrite(ctx, upsertModels(events, time.Now()), opts)
	return err
}

func upsertModels(events []entity.FlightEvent, now time.Time) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(events))
	for _, event := range events {
		updateDoc := bson.M{
			"key":        event.Key,
			"partition":  event.Partition,
			"offset":     event.Offset,
			"flight":     event.Flight,
			"consumedAt": event.ConsumedAt,
			"updatedAt":  now,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"key": event.Key}).
			SetUpdate(bson.M{"$set": updateDoc}).
			SetUpsert(true))
	}
	return models
}

// FindByKey returns the archived event or nil when none exists
func (r *MongoFlightEventRepository) FindByKey(ctx context.Context, key string) (*entity.FlightEvent, error) {
	var event entity.FlightEvent
	err := r.collection.FindOne(ctx, bson.M{"key": key}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Close disconnects the underlying client
func (r *MongoFlightEventRepository) Close(ctx context.Context) error {
	return r.collection.Database().Client().Disconnect(ctx)
}
