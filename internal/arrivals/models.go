package arrivals

import (
	"encoding/json"
	"time"
)

// Sentinels used when the upstream feed omits a value
const (
	Unknown         = -1
	UnknownMiles    = -1.0
	UnknownRoute    = "?"
	UnknownVehicle  = "--"
	UnknownDestName = "--"
)

// Arrival represents one upcoming vehicle at the monitored stop
type Arrival struct {
	Route               string    `json:"route"`                 // Normalized route code, "?" when unknown
	Vehicle             string    `json:"vehicle"`               // Vehicle reference, "--" when unknown
	Destination         string    `json:"destination"`           // Headsign, "--" when unknown
	StopsAway           int       `json:"stops_away"`            // -1 when unknown
	MinutesUntilArrival int       `json:"minutes_until_arrival"` // Floored at 0, -1 when unknown
	ExpectedArrival     time.Time `json:"expected_arrival"`      // Zero when unknown
	MilesAway           float64   `json:"miles_away"`            // -1 when unknown
	EstimatedOccupancy  int       `json:"estimated_occupancy"`   // Heuristic, see OccupancyModel
}

// HasETA reports whether the arrival time is known
func (a Arrival) HasETA() bool {
	return a.MinutesUntilArrival >= 0
}

// ExpectedArrivalEpoch returns the expected arrival in unix seconds, 0 when unknown
func (a Arrival) ExpectedArrivalEpoch() int64 {
	if a.ExpectedArrival.IsZero() {
		return 0
	}
	return a.ExpectedArrival.Unix()
}

// MarshalJSON emits the arrival with the epoch form of the expected arrival.
// The timestamp is omitted when unknown so clients can rely on the epoch alone.
func (a Arrival) MarshalJSON() ([]byte, error) {
	type alias Arrival
	out := struct {
		alias
		ExpectedArrival      *time.Time `json:"expected_arrival,omitempty"`
		ExpectedArrivalEpoch int64      `json:"expected_arrival_epoch"`
	}{
		alias:                alias(a),
		ExpectedArrivalEpoch: a.ExpectedArrivalEpoch(),
	}
	if !a.ExpectedArrival.IsZero() {
		t := a.ExpectedArrival.UTC()
		out.ExpectedArrival = &t
	}
	return json.Marshal(out)
}

// Result is the output of one pass over a stop-monitoring response
type Result struct {
	Arrivals []Arrival `json:"arrivals"`
	StopName string    `json:"stop_name"` // First non-empty stop name among the visits
}

// Len returns the number of arrivals
func (r Result) Len() int {
	return len(r.Arrivals)
}

// Clone returns a deep copy safe to hand to another goroutine
func (r Result) Clone() Result {
	out := Result{StopName: r.StopName}
	if r.Arrivals != nil {
		out.Arrivals = make([]Arrival, len(r.Arrivals))
		copy(out.Arrivals, r.Arrivals)
	}
	return out
}
