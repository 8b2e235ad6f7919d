package weather

import (
	"context"
	"time"

	"github.com/yegors/arrival-board/pkg/logger"
)

// Service produces weather snapshots. It holds no snapshot itself: the caller
// owns the current value and passes it back in on the next refresh.
type Service struct {
	resolver   *Resolver
	forecaster Forecaster
	logger     *logger.Logger
}

// NewService creates a new weather service
func NewService(resolver *Resolver, forecaster Forecaster, log *logger.Logger) *Service {
	return &Service{
		resolver:   resolver,
		forecaster: forecaster,
		logger:     log.Named("weather-service"),
	}
}

// Due reports whether a snapshot is old enough to refetch. A snapshot that was
// never fetched is always due.
func Due(prev Snapshot, now time.Time, minInterval time.Duration) bool {
	if prev.LastFetch.IsZero() {
		return true
	}
	return now.Sub(prev.LastFetch) >= minInterval
}

// Refresh resolves the location and fetches a forecast. On failure it returns
// prev with HasData cleared and the resolved location kept; every other field
// is left as it was.
func (s *Service) Refresh(ctx context.Context, prev Snapshot, stopNameHint string, now time.Time) Snapshot {
	loc := s.resolver.ResolveLocation(ctx, prev.Location, stopNameHint)

	forecast, err := s.forecaster.Forecast(ctx, loc)
	if err != nil {
		s.logger.Warn("Weather refresh failed, keeping previous values",
			logger.Float64("lat", loc.Lat),
			logger.Float64("lon", loc.Lon),
			logger.Error(err))

		next := prev
		next.HasData = false
		next.Location = loc
		return next
	}

	next := Snapshot{
		HasData:           true,
		Icon:              IconForCode(forecast.WeatherCode),
		TemperatureF:      forecast.TemperatureF,
		PrecipProbability: forecast.PrecipProbability,
		PrecipInches:      forecast.PrecipInches,
		LastFetch:         now,
		Location:          loc,
	}

	s.logger.Info("Weather updated",
		logger.String("icon", next.Icon.String()),
		logger.Int("temperature_f", next.TemperatureF),
		logger.Int("precip_probability", next.PrecipProbability),
		logger.String("location_source", string(loc.Source)))

	return next
}
