package weather

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/yegors/arrival-board/internal/config"
	"github.com/yegors/arrival-board/internal/jsonutil"
	"github.com/yegors/arrival-board/pkg/logger"
)

// Fetcher performs a single bounded GET
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Geocoder turns a place name into a coordinate
type Geocoder interface {
	Geocode(ctx context.Context, name string) (Location, bool)
}

// Forecaster fetches current conditions for a coordinate
type Forecaster interface {
	Forecast(ctx context.Context, loc Location) (Forecast, error)
}

// Client talks to the Open-Meteo forecast and geocoding APIs
type Client struct {
	forecastURL string
	geocodeURL  string
	timezone    string
	fetcher     Fetcher
	logger      *logger.Logger
}

// NewClient creates a new Open-Meteo client
func NewClient(cfg config.WeatherConfig, fetcher Fetcher, log *logger.Logger) *Client {
	return &Client{
		forecastURL: cfg.ForecastURL,
		geocodeURL:  cfg.GeocodeURL,
		timezone:    cfg.Timezone,
		fetcher:     fetcher,
		logger:      log.Named("weather-client"),
	}
}

// Forecast fetches current temperature, precipitation and weather code plus the
// first hour of precipitation probability. Absent values become sentinels; only
// transport failures and unparsable bodies are errors.
func (c *Client) Forecast(ctx context.Context, loc Location) (Forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 5, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', 5, 64))
	if c.timezone != "" {
		q.Set("timezone", c.timezone)
	}
	q.Set("temperature_unit", "fahrenheit")
	q.Set("precipitation_unit", "inch")
	q.Set("current", "temperature_2m,precipitation,weather_code")
	q.Set("hourly", "precipitation_probability")

	body, err := c.fetcher.Get(ctx, c.forecastURL+"?"+q.Encode())
	if err != nil {
		return Forecast{}, fmt.Errorf("failed to fetch forecast: %w", err)
	}

	doc, err := jsonutil.Parse(body)
	if err != nil {
		return Forecast{}, fmt.Errorf("failed to decode forecast: %w", err)
	}

	current := jsonutil.Object(doc, "current")
	f := Forecast{
		WeatherCode:       jsonutil.Int(jsonutil.Object(current, "weather_code"), -1),
		TemperatureF:      UnknownTemperature,
		PrecipProbability: jsonutil.Int(jsonutil.Index(jsonutil.Path(doc, "hourly", "precipitation_probability"), 0), UnknownProbability),
		PrecipInches:      jsonutil.Float(jsonutil.Object(current, "precipitation"), UnknownInches),
	}
	if t := jsonutil.Float(jsonutil.Object(current, "temperature_2m"), math.NaN()); !math.IsNaN(t) {
		f.TemperatureF = int(math.Round(t))
	}

	return f, nil
}

// Geocode looks up name and returns the first match. Matches at (0,0) are
// treated as "no real match".
func (c *Client) Geocode(ctx context.Context, name string) (Location, bool) {
	if name == "" || c.geocodeURL == "" {
		return Location{}, false
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	body, err := c.fetcher.Get(ctx, c.geocodeURL+"?"+q.Encode())
	if err != nil {
		c.logger.Warn("Geocoding request failed",
			logger.String("name", name),
			logger.Error(err))
		return Location{}, false
	}

	doc, err := jsonutil.Parse(body)
	if err != nil {
		c.logger.Warn("Failed to decode geocoding response",
			logger.String("name", name),
			logger.Error(err))
		return Location{}, false
	}

	first := jsonutil.Index(jsonutil.Object(doc, "results"), 0)
	if !jsonutil.Present(first) {
		c.logger.Debug("No geocoding match", logger.String("name", name))
		return Location{}, false
	}

	loc := Location{
		Lat:    jsonutil.Float(jsonutil.Object(first, "latitude"), 0),
		Lon:    jsonutil.Float(jsonutil.Object(first, "longitude"), 0),
		Source: SourceGeocode,
	}
	if !loc.IsSet() {
		return Location{}, false
	}

	c.logger.Info("Geocoded stop",
		logger.String("name", name),
		logger.Float64("lat", loc.Lat),
		logger.Float64("lon", loc.Lon))
	return loc, true
}
