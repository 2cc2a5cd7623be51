package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFlightEventRepository implements the FlightEventRepository interface on postgres
type GormFlightEventRepository struct {
	db *gorm.DB
}

// NewGormFlightEventRepository creates a new GORM flight event archive and migrates its table
func NewGormFlightEventRepository(db *gorm.DB) (repository.FlightEventRepository, error) {
	if err := db.AutoMigrate(&FlightEvents{}); err != nil {
		return nil, fmt.Errorf("migrating flight_events: %w", err)
	}
	return &GormFlightEventRepository{
		db: db,
	}, nil
}

// FlightEvents GORM model for database mapping
type FlightEvents struct {
	ID            uint      `gorm:"primaryKey"`
	Key           string    `gorm:"column:key;uniqueIndex"`
	Partition     int       `gorm:"column:partition"`
	Offset        string    `gorm:"column:offset"`
	FlightDate    string    `gorm:"column:flight_date"`
	FlightStatus  string    `gorm:"column:flight_status"`
	DepartureIATA string    `gorm:"column:departure_iata;index"`
	ArrivalIATA   string    `gorm:"column:arrival_iata"`
	AirlineIATA   string    `gorm:"column:airline_iata"`
	Payload       string    `gorm:"column:payload;type:jsonb"`
	ConsumedAt    time.Time `gorm:"column:consumed_at"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the default table name
func (FlightEvents) TableName() string {
	return "flight_events"
}

// UpsertBatch inserts or refreshes one row per key. When a batch repeats a key
// the last event wins.
func (r *GormFlightEventRepository) UpsertBatch(ctx context.Context, events []entity.FlightEvent) error {
	rows, err := toRows(events)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"partition", "offset", "flight_date", "flight_status",
			"departure_iata", "arrival_iata", "airline_iata",
			"payload", "consumed_at", "updated_at",
		}),
	}).Create(&rows).Error
}

// FindByKey returns the archived event or nil when none exists
func (r *GormFlightEventRepository) FindByKey(ctx context.Context, key string) (*entity.FlightEvent, error) {
	var row FlightEvents
	result := r.db.WithContext(ctx).Where("key = ?", key).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	// Convert GORM model to domain entity
	return fromRow(row)
}

// Close closes the connection pool
func (r *GormFlightEventRepository) Close(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRows(events []entity.FlightEvent) ([]FlightEvents, error) {
	index := make(map[string]int, len(events))
	rows := make([]FlightEvents, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event.Flight)
		if err != nil {
			return nil, fmt.Errorf("encoding flight %s: %w", event.Key, err)
		}
		row := FlightEvents{
			Key:           event.Key,
			Partition:     event.Partition,
			Offset:        event.Offset,
			FlightDate:    event.Flight.FlightDate,
			FlightStatus:  event.Flight.FlightStatus,
			DepartureIATA: event.Flight.DepartureIATA(),
			ArrivalIATA:   event.Flight.ArrivalIATA(),
			AirlineIATA:   event.Flight.AirlineIATA(),
			Payload:       string(payload),
			ConsumedAt:    event.ConsumedAt,
		}
		if i, ok := index[event.Key]; ok {
			rows[i] = row
			continue
		}
		index[event.Key] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

func fromRow(row FlightEvents) (*entity.FlightEvent, error) {
	var flight entity.Flight
	if err := json.Unmarshal([]byte(row.Payload), &flight); err != nil {
		return nil, fmt.Errorf("decoding flight %s: %w", row.Key, err)
	}
	return &entity.FlightEvent{
		Key:        row.Key,
		Partition:  row.Partition,
		Offset:     row.Offset,
		Flight:     flight,
		ConsumedAt: row.ConsumedAt,
	}, nil
}
