package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// Config represents the complete server configuration
type Config struct {
	Map         MapConfig         `koanf:"map" yaml:"map"`
	Measurement MeasurementConfig `koanf:"measurement" yaml:"measurement"`
	Bridge      BridgeConfig      `koanf:"bridge" yaml:"bridge"`
	Weather     WeatherConfig     `koanf:"weather" yaml:"weather"`
	Geocoder    GeocoderConfig    `koanf:"geocoder" yaml:"geocoder"`
	Assistant   AssistantConfig   `koanf:"assistant" yaml:"assistant"`
}

// MapConfig holds the initial view and where rendered documents are written
type MapConfig struct {
	Center       CoordinatesYAML `koanf:"center" yaml:"center"`
	Zoom         int             `koanf:"zoom" yaml:"zoom"`
	DocumentPath string          `koanf:"document_path" yaml:"document_path"`
	// How long /api/v1/map/updates waits before answering with no change
	UpdateTimeout time.Duration `koanf:"update_timeout" yaml:"update_timeout"`
}

// MeasurementConfig holds travel speeds in km/h
type MeasurementConfig struct {
	WalkSpeedKmh  float64 `koanf:"walk_speed_kmh" yaml:"walk_speed_kmh"`
	DriveSpeedKmh float64 `koanf:"drive_speed_kmh" yaml:"drive_speed_kmh"`
}

// BridgeConfig controls the renderer-to-host channel
type BridgeConfig struct {
	DedupeConsecutive bool `koanf:"dedupe_consecutive" yaml:"dedupe_consecutive"`
	InboxSize         int  `koanf:"inbox_size" yaml:"inbox_size"`
}

// WeatherConfig holds weather lookup settings
type WeatherConfig struct {
	RefreshInterval   time.Duration `koanf:"refresh_interval" yaml:"refresh_interval"`
	StaleThreshold    time.Duration `koanf:"stale_threshold" yaml:"stale_threshold"`
	OpenWeatherAPIKey string        `koanf:"openweather_api_key" yaml:"openweather_api_key"`
	Language          string        `koanf:"language" yaml:"language"`
}

// GeocoderConfig holds address search settings
type GeocoderConfig struct {
	APIKey string `koanf:"api_key" yaml:"api_key"`
	// Zoom applied after recentering on a search result
	Zoom int `koanf:"zoom" yaml:"zoom"`
}

// AssistantConfig holds OpenAI settings for place descriptions
type AssistantConfig struct {
	APIKey   string        `koanf:"api_key" yaml:"api_key"`
	Model    string        `koanf:"model" yaml:"model"`
	Language string        `koanf:"language" yaml:"language"`
	CacheTTL time.Duration `koanf:"cache_ttl" yaml:"cache_ttl"`
}

// CoordinatesYAML represents lat/lon coordinates in YAML config
type CoordinatesYAML struct {
	Latitude  float64 `koanf:"latitude" yaml:"latitude"`
	Longitude float64 `koanf:"longitude" yaml:"longitude"`
}

// Point converts CoordinatesYAML to a geo.Point
func (c CoordinatesYAML) Point() geo.Point {
	return geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Map: MapConfig{
			// Kyiv
			Center:        CoordinatesYAML{Latitude: 50.4501, Longitude: 30.5234},
			Zoom:          6,
			UpdateTimeout: 25 * time.Second,
		},
		Measurement: MeasurementConfig{
			WalkSpeedKmh:  5,
			DriveSpeedKmh: 50,
		},
		Bridge: BridgeConfig{
			DedupeConsecutive: false,
			InboxSize:         64,
		},
		Weather: WeatherConfig{
			RefreshInterval: 10 * time.Minute,
			StaleThreshold:  20 * time.Minute,
			Language:        "en",
		},
		Geocoder: GeocoderConfig{
			Zoom: 12,
		},
		Assistant: AssistantConfig{
			Model:    "gpt-4o-mini",
			Language: "en",
			CacheTTL: 24 * time.Hour,
		},
	}
}

// Validate checks values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if err := geo.Validate(c.Map.Center.Point()); err != nil {
		errs = append(errs, fmt.Errorf("map.center: %w", err))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 19 {
		errs = append(errs, fmt.Errorf("map.zoom must be within [0, 19], got %d", c.Map.Zoom))
	}
	if c.Map.UpdateTimeout <= 0 {
		errs = append(errs, errors.New("map.update_timeout must be positive"))
	}
	if !finite(c.Measurement.WalkSpeedKmh) || !finite(c.Measurement.DriveSpeedKmh) {
		errs = append(errs, errors.New("measurement speeds must be finite"))
	}
	if c.Bridge.InboxSize <= 0 {
		errs = append(errs, fmt.Errorf("bridge.inbox_size must be positive, got %d", c.Bridge.InboxSize))
	}
	if c.Geocoder.Zoom < 0 || c.Geocoder.Zoom > 19 {
		errs = append(errs, fmt.Errorf("geocoder.zoom must be within [0, 19], got %d", c.Geocoder.Zoom))
	}

	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
