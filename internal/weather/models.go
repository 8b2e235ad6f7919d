package weather

import (
	"math"
	"time"
)

// Sentinels for values the forecast did not carry
const (
	UnknownTemperature = -999
	UnknownProbability = -1
	UnknownInches      = -1.0
)

// unsetEpsilon is how close to (0,0) a coordinate pair must be to count as unset
const unsetEpsilon = 0.001

// LocationSource records which step of the resolution chain produced a location
type LocationSource string

const (
	SourceNone     LocationSource = ""
	SourceStop     LocationSource = "stop_override"
	SourceGeocode  LocationSource = "geocode"
	SourceGlobal   LocationSource = "global_override"
	SourceFallback LocationSource = "default"
)

// Location is a forecast coordinate
type Location struct {
	Lat    float64        `json:"lat"`
	Lon    float64        `json:"lon"`
	Source LocationSource `json:"source,omitempty"`

	// Provisional marks a location picked before geocoding could run for lack
	// of a stop name. It is re-resolved once a name is known.
	Provisional bool `json:"provisional,omitempty"`
}

// DefaultLocation is used when nothing else resolves (New York City Hall)
var DefaultLocation = Location{Lat: 40.7128, Lon: -74.0060, Source: SourceFallback}

// IsSet reports whether the location is a real coordinate. Either half within
// 0.001 degrees of zero is treated as "no location".
func (l Location) IsSet() bool {
	return math.Abs(l.Lat) >= unsetEpsilon && math.Abs(l.Lon) >= unsetEpsilon
}

// Forecast is the subset of an Open-Meteo forecast the board shows
type Forecast struct {
	WeatherCode       int     // -1 when absent
	TemperatureF      int     // UnknownTemperature when absent
	PrecipProbability int     // Percent for the current hour, UnknownProbability when absent
	PrecipInches      float64 // UnknownInches when absent
}

// Snapshot is the current weather as seen by the board. A refresh produces a
// new Snapshot; nothing mutates one in place.
type Snapshot struct {
	HasData           bool      `json:"has_data"`
	Icon              Icon      `json:"icon"`
	TemperatureF      int       `json:"temperature_f"`
	PrecipProbability int       `json:"precip_probability"`
	PrecipInches      float64   `json:"precip_inches"`
	LastFetch         time.Time `json:"last_fetch"`
	Location          Location  `json:"location"`
}

// EmptySnapshot returns the snapshot used before any fetch has happened
func EmptySnapshot() Snapshot {
	return Snapshot{
		Icon:              IconOvercast,
		TemperatureF:      UnknownTemperature,
		PrecipProbability: UnknownProbability,
		PrecipInches:      UnknownInches,
	}
}

// HasTemperature reports whether the temperature is known
func (s Snapshot) HasTemperature() bool {
	return s.TemperatureF != UnknownTemperature
}
