package board

import (
	"sync"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/internal/weather"
)

// Status describes how the most recent fetches went
type Status struct {
	LastArrivalsAttempt time.Time `json:"last_arrivals_attempt"`
	LastArrivalsSuccess time.Time `json:"last_arrivals_success"`
	ArrivalsError       string    `json:"arrivals_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastWeatherAttempt  time.Time `json:"last_weather_attempt"`
}

// Stale reports whether the arrivals on display come from an earlier poll
// than the last attempt
func (s Status) Stale() bool {
	return s.ConsecutiveFailures > 0
}

// View is a point-in-time copy of the board. Callers own it.
type View struct {
	StopID   string             `json:"stop_id"`
	StopName string             `json:"stop_name"`
	Arrivals []arrivals.Arrival `json:"arrivals"`
	Weather  weather.Snapshot   `json:"weather"`
	Status   Status             `json:"status"`
}

// State is the single shared holder of what the board shows. Every update
// replaces a value wholesale under the lock, so readers never observe a
// partially applied poll.
type State struct {
	mu       sync.RWMutex
	stopID   string
	stopName string
	result   arrivals.Result
	weather  weather.Snapshot
	status   Status
}

// NewState creates an empty board for stopID
func NewState(stopID, stopNameOverride string) *State {
	return &State{
		stopID:   stopID,
		stopName: stopNameOverride,
		weather:  weather.EmptySnapshot(),
	}
}

// View returns a copy of the current board
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := s.result.Clone()
	if res.Arrivals == nil {
		res.Arrivals = []arrivals.Arrival{}
	}
	return View{
		StopID:   s.stopID,
		StopName: s.stopName,
		Arrivals: res.Arrivals,
		Weather:  s.weather,
		Status:   s.status,
	}
}

// Arrivals returns a copy of the current arrivals result
func (s *State) Arrivals() arrivals.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.Clone()
}

// Weather returns the current weather snapshot
func (s *State) Weather() weather.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weather
}

// StopName returns the display name, which may still be empty
func (s *State) StopName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopName
}

// Status returns the fetch status
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ApplyArrivals installs a successful poll. The stop name is adopted from the
// feed only while no name is known yet.
func (s *State) ApplyArrivals(res arrivals.Result, at time.Time) {
	res = res.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = res
	if s.stopName == "" && res.StopName != "" {
		s.stopName = res.StopName
	}
	s.status.LastArrivalsAttempt = at
	s.status.LastArrivalsSuccess = at
	s.status.ArrivalsError = ""
	s.status.ConsecutiveFailures = 0
}

// RecordArrivalsFailure notes a failed poll and keeps the previous arrivals
func (s *State) RecordArrivalsFailure(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastArrivalsAttempt = at
	s.status.ArrivalsError = err.Error()
	s.status.ConsecutiveFailures++
}

// ApplyWeather replaces the weather snapshot
func (s *State) ApplyWeather(snap weather.Snapshot, attemptedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.weather = snap
	s.status.LastWeatherAttempt = attemptedAt
}
