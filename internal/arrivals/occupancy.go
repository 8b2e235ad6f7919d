package arrivals

import (
	"math"

	"github.com/yegors/arrival-board/internal/config"
)

const (
	// imminentMinutes is the ETA at or under which a bus is presumed to have
	// unloaded riders on its way in
	imminentMinutes = 2
	imminentFactor  = 0.70
)

// OccupancyModel estimates riders on board from ETA and stops away.
//
// This is a heuristic, not measured data. The feed carries no passenger
// counts; the number only gives the board something plausible to show and
// grows with distance from the stop.
type OccupancyModel struct {
	Base      float64
	PerMinute float64
	PerStop   float64
	Cap       int
}

// DefaultOccupancyModel returns the stock coefficients
func DefaultOccupancyModel() OccupancyModel {
	return OccupancyModel{Base: 1.0, PerMinute: 0.22, PerStop: 0.60, Cap: 45}
}

// NewOccupancyModel builds a model from configuration, clamping the cap
func NewOccupancyModel(cfg config.OccupancyConfig) OccupancyModel {
	return OccupancyModel{
		Base:      cfg.Base,
		PerMinute: cfg.PerMinute,
		PerStop:   cfg.PerStop,
		Cap:       clamp(cfg.Cap, config.MinOccupancyCap, config.MaxOccupancyCap),
	}
}

// Estimate returns the rider estimate for an arrival, rounded half to even.
// Unknown inputs (-1) contribute nothing.
func (m OccupancyModel) Estimate(mins, stopsAway int) int {
	ppl := m.Base + m.PerMinute*float64(max(mins, 0)) + m.PerStop*float64(max(stopsAway, 0))
	if mins >= 0 && mins <= imminentMinutes {
		ppl *= imminentFactor
	}

	capacity := clamp(m.Cap, config.MinOccupancyCap, config.MaxOccupancyCap)
	if math.IsNaN(ppl) {
		return 0
	}
	return clamp(int(math.RoundToEven(min(max(ppl, 0), float64(capacity)))), 0, capacity)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
