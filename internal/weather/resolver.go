package weather

import (
	"context"

	"github.com/yegors/arrival-board/internal/config"
	"github.com/yegors/arrival-board/pkg/logger"
)

// Resolver picks the forecast location. First match wins:
//
//  1. a location already resolved on an earlier refresh
//  2. the stop coordinate override
//  3. geocoding the stop name plus the configured suffix
//  4. the global coordinate override
//  5. DefaultLocation
type Resolver struct {
	stopOverride   *Location
	globalOverride *Location
	suffix         string
	geocoder       Geocoder
	logger         *logger.Logger
}

// NewResolver creates a resolver from configuration. geocoder may be nil to
// disable step 3.
func NewResolver(cfg config.WeatherConfig, geocoder Geocoder, log *logger.Logger) *Resolver {
	r := &Resolver{
		suffix:   cfg.GeocodeSuffix,
		geocoder: geocoder,
		logger:   log.Named("weather-resolver"),
	}
	if cfg.StopLat != nil && cfg.StopLon != nil {
		r.stopOverride = &Location{Lat: *cfg.StopLat, Lon: *cfg.StopLon, Source: SourceStop}
	}
	if cfg.Lat != nil && cfg.Lon != nil {
		r.globalOverride = &Location{Lat: *cfg.Lat, Lon: *cfg.Lon, Source: SourceGlobal}
	}
	return r
}

// ResolveLocation returns cached when it is set, otherwise walks the chain.
// A provisional cached location is walked again once stopNameHint is known.
// The result is always a set location.
func (r *Resolver) ResolveLocation(ctx context.Context, cached Location, stopNameHint string) Location {
	if cached.IsSet() && !(cached.Provisional && stopNameHint != "") {
		return cached
	}

	// geocoding is skipped only for want of a name
	provisional := stopNameHint == "" && r.geocoder != nil

	if r.stopOverride != nil && r.stopOverride.IsSet() {
		return *r.stopOverride
	}

	if stopNameHint != "" && r.geocoder != nil {
		if loc, ok := r.geocoder.Geocode(ctx, stopNameHint+r.suffix); ok {
			return loc
		}
	}

	if r.globalOverride != nil && r.globalOverride.IsSet() {
		loc := *r.globalOverride
		loc.Provisional = provisional
		return loc
	}

	r.logger.Debug("Falling back to default weather location",
		logger.Float64("lat", DefaultLocation.Lat),
		logger.Float64("lon", DefaultLocation.Lon),
		logger.Bool("provisional", provisional))
	loc := DefaultLocation
	loc.Provisional = provisional
	return loc
}
