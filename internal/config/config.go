package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`       // HTTP/WebSocket display surface
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`     // Application logging settings
	HTTP      HTTPConfig      `toml:"http" yaml:"http"`           // Outbound HTTP client timeouts
	Transit   TransitConfig   `toml:"transit" yaml:"transit"`     // SIRI stop-monitoring source and polling
	Occupancy OccupancyConfig `toml:"occupancy" yaml:"occupancy"` // Occupancy heuristic tunables
	Weather   WeatherConfig   `toml:"weather" yaml:"weather"`     // Open-Meteo forecast and location resolution
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`     // Arrival history persistence
	Display   DisplayConfig   `toml:"display" yaml:"display"`     // Text rendering of the board
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Enabled          bool   `toml:"enabled" yaml:"enabled"`
	Host             string `toml:"host" yaml:"host"`                                                    // Host address to bind to
	Port             int    `toml:"port" yaml:"port" validate:"gte=1,lte=65535"`                         // HTTP port
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds" yaml:"read_timeout_seconds" validate:"gte=0"`   // 0 = no timeout
	WriteTimeoutSecs int    `toml:"write_timeout_seconds" yaml:"write_timeout_seconds" validate:"gte=0"` // 0 = no timeout (WebSocket friendly)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds" yaml:"idle_timeout_seconds" validate:"gte=0"`
	StaticDir        string `toml:"static_dir" yaml:"static_dir"` // Kiosk page directory, empty = built-in page
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"oneof=debug info warn error"` // Log level
	Format string `toml:"format" yaml:"format" validate:"oneof=console json"`        // Log format
}

// HTTPConfig contains timeouts shared by every outbound request
type HTTPConfig struct {
	ConnectTimeoutSecs int    `toml:"connect_timeout_seconds" yaml:"connect_timeout_seconds" validate:"gte=1"`
	RequestTimeoutSecs int    `toml:"request_timeout_seconds" yaml:"request_timeout_seconds" validate:"gte=1"`
	UserAgent          string `toml:"user_agent" yaml:"user_agent"`
}

// TransitConfig contains the SIRI stop-monitoring source configuration
type TransitConfig struct {
	APIKey         string `toml:"api_key" yaml:"api_key" validate:"required"`         // MTA BusTime API key
	StopID         string `toml:"stop_id" yaml:"stop_id" validate:"required"`         // MonitoringRef of the stop to display
	OperatorRef    string `toml:"operator_ref" yaml:"operator_ref"`                   // OperatorRef query parameter
	BaseURL        string `toml:"base_url" yaml:"base_url" validate:"required,url"`   // Stop-monitoring JSON endpoint
	RouteFilter    string `toml:"route_filter" yaml:"route_filter"`                   // Comma-separated allow-list, empty = all
	PollInterval   int    `toml:"poll_interval_seconds" yaml:"poll_interval_seconds"` // Floor 5
	MaxResults     int    `toml:"max_results" yaml:"max_results"`                     // Clamped to 1..24
	StopName       string `toml:"stop_name" yaml:"stop_name"`                         // Display name override
	TickIntervalMs int    `toml:"tick_interval_ms" yaml:"tick_interval_ms" validate:"gte=10"`
}

// OccupancyConfig contains the coefficients of the rider-count heuristic.
// The output is an estimate derived from ETA and stops away only.
type OccupancyConfig struct {
	Base      float64 `toml:"base" yaml:"base"`
	PerMinute float64 `toml:"per_minute" yaml:"per_minute"`
	PerStop   float64 `toml:"per_stop" yaml:"per_stop"`
	Cap       int     `toml:"cap" yaml:"cap"` // Clamped to 5..200
}

// WeatherConfig contains forecast and location-resolution settings
type WeatherConfig struct {
	Enabled                bool     `toml:"enabled" yaml:"enabled"`
	ForecastURL            string   `toml:"forecast_url" yaml:"forecast_url" validate:"omitempty,url"`
	GeocodeURL             string   `toml:"geocode_url" yaml:"geocode_url" validate:"omitempty,url"`
	RefreshIntervalSeconds int      `toml:"refresh_interval_seconds" yaml:"refresh_interval_seconds" validate:"gte=60"`
	StopLat                *float64 `toml:"stop_lat" yaml:"stop_lat" validate:"omitempty,gte=-90,lte=90"`
	StopLon                *float64 `toml:"stop_lon" yaml:"stop_lon" validate:"omitempty,gte=-180,lte=180"`
	Lat                    *float64 `toml:"lat" yaml:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon                    *float64 `toml:"lon" yaml:"lon" validate:"omitempty,gte=-180,lte=180"`
	GeocodeSuffix          string   `toml:"geocode_suffix" yaml:"geocode_suffix"`
	Timezone               string   `toml:"timezone" yaml:"timezone"`
}

// DisplayConfig contains settings for the formatted board
type DisplayConfig struct {
	Timezone     string `toml:"timezone" yaml:"timezone"`           // Clock zone, empty = local time
	TemplatePath string `toml:"template_path" yaml:"template_path"` // text/template for /api/board.txt, empty = built-in
}

// StorageConfig contains arrival history persistence configuration
type StorageConfig struct {
	Enabled        bool   `toml:"enabled" yaml:"enabled"`
	SQLiteBasePath string `toml:"sqlite_base_path" yaml:"sqlite_base_path" validate:"required_if=Enabled true"`
	RetentionDays  int    `toml:"retention_days" yaml:"retention_days" validate:"gte=0"` // 0 = keep forever
}

const (
	MinPollIntervalSeconds = 5
	MinMaxResults          = 1
	MaxMaxResults          = 24
	MinOccupancyCap        = 5
	MaxOccupancyCap        = 200
)

// Default returns the configuration used when no file or environment overrides a value
func Default() Config {
	return Config{
		Server: ServerConfig{
			Enabled:          true,
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeoutSecs:  10,
			WriteTimeoutSecs: 0,
			IdleTimeoutSecs:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			ConnectTimeoutSecs: 4,
			RequestTimeoutSecs: 8,
			UserAgent:          "arrival-board/1.0",
		},
		Transit: TransitConfig{
			OperatorRef:    "MTA",
			BaseURL:        "https://bustime.mta.info/api/siri/stop-monitoring.json",
			PollInterval:   10,
			MaxResults:     12,
			TickIntervalMs: 250,
		},
		Occupancy: OccupancyConfig{
			Base:      1.0,
			PerMinute: 0.22,
			PerStop:   0.60,
			Cap:       45,
		},
		Weather: WeatherConfig{
			Enabled:                true,
			ForecastURL:            "https://api.open-meteo.com/v1/forecast",
			GeocodeURL:             "https://geocoding-api.open-meteo.com/v1/search",
			RefreshIntervalSeconds: 600,
			GeocodeSuffix:          ", New York City",
			Timezone:               "America/New_York",
		},
		Storage: StorageConfig{
			Enabled:        false,
			SQLiteBasePath: "data",
			RetentionDays:  14,
		},
		Display: DisplayConfig{
			Timezone: "America/New_York",
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
// The format is chosen by extension: .yaml/.yml use YAML, anything else TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	return &cfg, nil
}

// LoadWithFallback tries the preferred path and then the conventional locations.
// When no file exists anywhere the defaults are returned, since kiosk deployments
// are frequently configured purely through the environment.
func LoadWithFallback(preferredPath string) (*Config, error) {
	if preferredPath != "" {
		return Load(preferredPath)
	}

	for _, path := range []string{"configs/config.toml", "config.toml", "configs/config.yaml", "config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := Default()
	return &cfg, nil
}

// ApplyEnvironment overrides configuration values from environment variables.
// lookup is os.LookupEnv in production.
func (c *Config) ApplyEnvironment(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(name); ok && v != "" {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}
	pair := func(latName, lonName string, lat, lon **float64) {
		latStr, okLat := lookup(latName)
		lonStr, okLon := lookup(lonName)
		if !okLat || !okLon {
			return
		}
		la, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		lo, errLon := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if errLat != nil || errLon != nil {
			return
		}
		*lat, *lon = &la, &lo
	}

	str("MTA_KEY", &c.Transit.APIKey)
	str("STOP_ID", &c.Transit.StopID)
	str("ROUTE_FILTER", &c.Transit.RouteFilter)
	integer("POLL_SECONDS", &c.Transit.PollInterval)
	integer("MAX_TILES", &c.Transit.MaxResults)
	str("STOP_NAME", &c.Transit.StopName)

	float("PPL_BASE", &c.Occupancy.Base)
	float("PPL_PER_MIN", &c.Occupancy.PerMinute)
	float("PPL_PER_STOP", &c.Occupancy.PerStop)
	integer("PPL_CAP", &c.Occupancy.Cap)

	pair("STOP_LAT", "STOP_LON", &c.Weather.StopLat, &c.Weather.StopLon)
	pair("WEATHER_LAT", "WEATHER_LON", &c.Weather.Lat, &c.Weather.Lon)
	str("WEATHER_GEOCODE_SUFFIX", &c.Weather.GeocodeSuffix)

	str("LOG_LEVEL", &c.Logging.Level)
}

// Normalize clamps bounded values into their allowed ranges
func (c *Config) Normalize() {
	if c.Transit.PollInterval < MinPollIntervalSeconds {
		c.Transit.PollInterval = MinPollIntervalSeconds
	}
	c.Transit.MaxResults = clampInt(c.Transit.MaxResults, MinMaxResults, MaxMaxResults)
	c.Occupancy.Cap = clampInt(c.Occupancy.Cap, MinOccupancyCap, MaxOccupancyCap)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Transit.APIKey = strings.TrimSpace(c.Transit.APIKey)
	c.Transit.StopID = strings.TrimSpace(c.Transit.StopID)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Weather.Enabled && c.Weather.ForecastURL == "" {
		return fmt.Errorf("weather forecast_url is required when weather is enabled")
	}
	if (c.Weather.StopLat == nil) != (c.Weather.StopLon == nil) {
		return fmt.Errorf("weather stop_lat and stop_lon must be set together")
	}
	if (c.Weather.Lat == nil) != (c.Weather.Lon == nil) {
		return fmt.Errorf("weather lat and lon must be set together")
	}
	if c.Weather.Timezone != "" {
		if _, err := time.LoadLocation(c.Weather.Timezone); err != nil {
			return fmt.Errorf("invalid weather timezone %q: %w", c.Weather.Timezone, err)
		}
	}

	if c.Display.Timezone != "" {
		if _, err := time.LoadLocation(c.Display.Timezone); err != nil {
			return fmt.Errorf("invalid display timezone %q: %w", c.Display.Timezone, err)
		}
	}

	return nil
}

// Location returns the clock time zone, or time.Local when unset or invalid
func (d DisplayConfig) Location() *time.Location {
	if d.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RetentionDuration returns how long history is kept, 0 = forever
func (s StorageConfig) RetentionDuration() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// PollIntervalDuration returns the arrivals polling interval
func (t TransitConfig) PollIntervalDuration() time.Duration {
	return time.Duration(t.PollInterval) * time.Second
}

// TickInterval returns the scheduler tick
func (t TransitConfig) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMs) * time.Millisecond
}

// RefreshInterval returns the minimum weather refetch interval
func (w WeatherConfig) RefreshInterval() time.Duration {
	return time.Duration(w.RefreshIntervalSeconds) * time.Second
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
