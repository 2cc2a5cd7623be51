// internal/domain/entity/flight_event.go
package entity

import (
	"time"
)

// FlightEvent is one flight record as read back from the event log
type FlightEvent struct {
	Key        string    `bson:"key" json:"key"`
	Partition  int       `bson:"partition" json:"partition"`
	Offset     string    `bson:"offset" json:"offset"`
	Flight     Flight    `bson:"flight" json:"flight"`
	ConsumedAt time.Time `bson:"consumedAt" json:"consumedAt"`
}
