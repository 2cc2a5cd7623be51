// internal/domain/entity/flight.go
package entity

import (
	"encoding/json"
	"strings"
)

// Flight statuses known to the provider and the status predictor
const (
	StatusActive    = "active"
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
	StatusLanded    = "landed"
)

// KnownStatuses lists the flight statuses in their stable class order
var KnownStatuses = []string{StatusActive, StatusScheduled, StatusCancelled, StatusLanded}

// UnknownKeyPart stands in for a missing date or departure IATA code in event keys
const UnknownKeyPart = "unknown"

// Flight is one flight occurrence as reported by the provider
type Flight struct {
	FlightDate      string     `json:"flight_date,omitempty" bson:"flight_date,omitempty"`
	FlightStatus    string     `json:"flight_status,omitempty" bson:"flight_status,omitempty"`
	Departure       *Departure `json:"departure,omitempty" bson:"departure,omitempty"`
	Arrival         *Arrival   `json:"arrival,omitempty" bson:"arrival,omitempty"`
	Airline         *Airline   `json:"airline,omitempty" bson:"airline,omitempty"`
	Flight          *FlightID  `json:"flight,omitempty" bson:"flight,omitempty"`
	Aircraft        *Aircraft  `json:"aircraft,omitempty" bson:"aircraft,omitempty"`
	Live            *Live      `json:"live,omitempty" bson:"live,omitempty"`
	PredictedStatus string     `json:"predicted_status,omitempty" bson:"predicted_status,omitempty"`
}

// Departure describes the origin leg of a flight
type Departure struct {
	Airport         string `json:"airport,omitempty" bson:"airport,omitempty"`
	Timezone        string `json:"timezone,omitempty" bson:"timezone,omitempty"`
	IATA            string `json:"iata,omitempty" bson:"iata,omitempty"`
	ICAO            string `json:"icao,omitempty" bson:"icao,omitempty"`
	Terminal        string `json:"terminal,omitempty" bson:"terminal,omitempty"`
	Gate            string `json:"gate,omitempty" bson:"gate,omitempty"`
	Delay           *int   `json:"delay,omitempty" bson:"delay,omitempty"`
	Scheduled       string `json:"scheduled,omitempty" bson:"scheduled,omitempty"`
	Estimated       string `json:"estimated,omitempty" bson:"estimated,omitempty"`
	Actual          string `json:"actual,omitempty" bson:"actual,omitempty"`
	EstimatedRunway string `json:"estimated_runway,omitempty" bson:"estimated_runway,omitempty"`
	ActualRunway    string `json:"actual_runway,omitempty" bson:"actual_runway,omitempty"`
}

// Arrival mirrors Departure and adds the baggage claim
type Arrival struct {
	Airport         string `json:"airport,omitempty" bson:"airport,omitempty"`
	Timezone        string `json:"timezone,omitempty" bson:"timezone,omitempty"`
	IATA            string `json:"iata,omitempty" bson:"iata,omitempty"`
	ICAO            string `json:"icao,omitempty" bson:"icao,omitempty"`
	Terminal        string `json:"terminal,omitempty" bson:"terminal,omitempty"`
	Gate            string `json:"gate,omitempty" bson:"gate,omitempty"`
	Baggage         string `json:"baggage,omitempty" bson:"baggage,omitempty"`
	Delay           *int   `json:"delay,omitempty" bson:"delay,omitempty"`
	Scheduled       string `json:"scheduled,omitempty" bson:"scheduled,omitempty"`
	Estimated       string `json:"estimated,omitempty" bson:"estimated,omitempty"`
	Actual          string `json:"actual,omitempty" bson:"actual,omitempty"`
	EstimatedRunway string `json:"estimated_runway,omitempty" bson:"estimated_runway,omitempty"`
	ActualRunway    string `json:"actual_runway,omitempty" bson:"actual_runway,omitempty"`
}

// Airline identifies the operating carrier
type Airline struct {
	Name string `json:"name,omitempty" bson:"name,omitempty"`
	IATA string `json:"iata,omitempty" bson:"iata,omitempty"`
	ICAO string `json:"icao,omitempty" bson:"icao,omitempty"`
}

// FlightID carries the flight number in its various forms
type FlightID struct {
	Number string `json:"number,omitempty" bson:"number,omitempty"`
	IATA   string `json:"iata,omitempty" bson:"iata,omitempty"`
	ICAO   string `json:"icao,omitempty" bson:"icao,omitempty"`
}

// Aircraft identifies the airframe
type Aircraft struct {
	Registration string `json:"registration,omitempty" bson:"registration,omitempty"`
	IATA         string `json:"iata,omitempty" bson:"iata,omitempty"`
	ICAO         string `json:"icao,omitempty" bson:"icao,omitempty"`
	ICAO24       string `json:"icao24,omitempty" bson:"icao24,omitempty"`
}

// Live is the optional telemetry block
type Live struct {
	Updated         string  `json:"updated,omitempty" bson:"updated,omitempty"`
	Latitude        float64 `json:"latitude" bson:"latitude"`
	Longitude       float64 `json:"longitude" bson:"longitude"`
	Altitude        float64 `json:"altitude" bson:"altitude"`
	Direction       float64 `json:"direction" bson:"direction"`
	SpeedHorizontal float64 `json:"speed_horizontal" bson:"speed_horizontal"`
	SpeedVertical   float64 `json:"speed_vertical" bson:"speed_vertical"`
	IsGround        bool    `json:"is_ground" bson:"is_ground"`
}

// EventKey returns the partition key used on the event log:
// "{date}-{departure iata}" or "unknown-{departure iata|unknown}".
// It is not unique across flights.
func (f *Flight) EventKey() string {
	depIATA := f.DepartureIATA()
	if f.FlightDate != "" && depIATA != "" {
		return f.FlightDate + "-" + depIATA
	}
	if depIATA == "" {
		depIATA = UnknownKeyPart
	}
	return UnknownKeyPart + "-" + depIATA
}

// DepartureIATA returns the departure airport code or ""
func (f *Flight) DepartureIATA() string {
	if f.Departure == nil {
		return ""
	}
	return f.Departure.IATA
}

// ArrivalIATA returns the arrival airport code or ""
func (f *Flight) ArrivalIATA() string {
	if f.Arrival == nil {
		return ""
	}
	return f.Arrival.IATA
}

// AirlineIATA returns the airline code or ""
func (f *Flight) AirlineIATA() string {
	if f.Airline == nil {
		return ""
	}
	return f.Airline.IATA
}

// AirlineName returns the airline name or ""
func (f *Flight) AirlineName() string {
	if f.Airline == nil {
		return ""
	}
	return f.Airline.Name
}

// NormalizedStatus returns the lower-cased status
func (f *Flight) NormalizedStatus() string {
	return strings.ToLower(strings.TrimSpace(f.FlightStatus))
}

// HasKnownStatus reports whether the status is one of KnownStatuses
func (f *Flight) HasKnownStatus() bool {
	status := f.NormalizedStatus()
	for _, known := range KnownStatuses {
		if status == known {
			return true
		}
	}
	return false
}

// IsValidForPrediction reports whether the flight carries airline, departure,
// arrival and a known status.
func (f *Flight) IsValidForPrediction() bool {
	return f != nil &&
		f.Airline != nil &&
		f.Departure != nil &&
		f.Arrival != nil &&
		f.HasKnownStatus()
}

// Clone returns a deep copy
func (f Flight) Clone() Flight {
	out := f
	if f.Departure != nil {
		d := *f.Departure
		if f.Departure.Delay != nil {
			delay := *f.Departure.Delay
			d.Delay = &delay
		}
		out.Departure = &d
	}
	if f.Arrival != nil {
		a := *f.Arrival
		if f.Arrival.Delay != nil {
			delay := *f.Arrival.Delay
			a.Delay = &delay
		}
		out.Arrival = &a
	}
	if f.Airline != nil {
		a := *f.Airline
		out.Airline = &a
	}
	if f.Flight != nil {
		id := *f.Flight
		out.Flight = &id
	}
	if f.Aircraft != nil {
		a := *f.Aircraft
		out.Aircraft = &a
	}
	if f.Live != nil {
		l := *f.Live
		out.Live = &l
	}
	return out
}

// fingerprint is the canonical encoding used for value equality
func (f *Flight) fingerprint() string {
	data, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return string(data)
}

// Equal reports whether two flights carry the same values
func (f *Flight) Equal(other *Flight) bool {
	return f.fingerprint() == other.fingerprint()
}

// DistinctFlights drops later duplicates (full value equality) keeping input order
func DistinctFlights(flights []Flight) []Flight {
	seen := make(map[string]struct{}, len(flights))
	out := make([]Flight, 0, len(flights))
	for i := range flights {
		fp := flights[i].fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, flights[i])
	}
	return out
}

// LimitFlights returns at most n flights from the head of the slice
func LimitFlights(flights []Flight, n int) []Flight {
	if n < 0 || len(flights) <= n {
		return flights
	}
	return flights[:n]
}

// CloneFlights deep-copies a batch so callers can annotate it freely
func CloneFlights(flights []Flight) []Flight {
	out := make([]Flight, len(flights))
	for i := range flights {
		out[i] = flights[i].Clone()
	}
	return out
}
