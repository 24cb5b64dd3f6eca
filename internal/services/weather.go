package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/mapweather/server/internal/cache"
	"github.com/dpup/mapweather/server/internal/clients/weather"
	"github.com/dpup/mapweather/server/internal/config"
	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// WeatherFetcher is the upstream weather API
type WeatherFetcher interface {
	GetCurrentWeather(ctx context.Context, p geo.Point, lang string) (*weather.Conditions, error)
	GetForecast(ctx context.Context, p geo.Point, lang string) ([]weather.ForecastEntry, error)
}

// WeatherReport is what the UI shows beside the map
type WeatherReport struct {
	Location    geo.Point               `json:"location"`
	Current     *weather.Conditions     `json:"current"`
	Forecast    []weather.DailyForecast `json:"forecast"`
	Summary     string                  `json:"summary"`
	Background  string                  `json:"background"`
	LastUpdated time.Time               `json:"last_updated"`
	Stale       bool                    `json:"stale"`
}

// WeatherService serves cached weather for map locations
type WeatherService struct {
	client WeatherFetcher
	cache  *cache.Cache
	config config.WeatherConfig
	now    func() time.Time
}

// NewWeatherService creates a new WeatherService
func NewWeatherService(client WeatherFetcher, c *cache.Cache, cfg config.WeatherConfig) *WeatherService {
	return &WeatherService{
		client: client,
		cache:  c,
		config: cfg,
		now:    time.Now,
	}
}

// GetWeather returns fresh cached weather for p, refreshing on a miss. If the
// refresh fails, data younger than the stale threshold is served instead.
func (s *WeatherService) GetWeather(ctx context.Context, p geo.Point) (*WeatherReport, error) {
	key := cache.WeatherKey(p)

	var cached WeatherReport
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		logging.Warnw(ctx, "Weather cache read failed", "key", key, "error", err)
	}
	if found {
		return &cached, nil
	}

	report, err := s.Refresh(ctx, p)
	if err == nil {
		return report, nil
	}

	var stale WeatherReport
	_, exists, cacheErr := s.cache.GetWithMetadata(key, &stale)
	if exists && cacheErr == nil && !s.cache.IsOlderThan(key, s.config.StaleThreshold) {
		logging.Warnw(ctx, "Weather refresh failed, serving stale data", "key", key, "error", err)
		stale.Stale = true
		return &stale, nil
	}
	return nil, err
}

// Refresh fetches weather for p from upstream and caches it. A forecast
// failure still yields a report with current conditions.
func (s *WeatherService) Refresh(ctx context.Context, p geo.Point) (*WeatherReport, error) {
	current, err := s.client.GetCurrentWeather(ctx, p, s.config.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh weather: %w", err)
	}

	report := &WeatherReport{
		Location:    p,
		Current:     current,
		Summary:     weather.Summary(current),
		Background:  weather.BackgroundKey(current.Description),
		LastUpdated: s.now().UTC(),
	}

	entries, err := s.client.GetForecast(ctx, p, s.config.Language)
	if err != nil {
		logging.Warnw(ctx, "Forecast unavailable", "error", err)
	} else {
		report.Forecast = weather.Daily(entries, weather.ForecastDays)
	}

	if err := s.cache.Set(cache.WeatherKey(p), report, s.config.RefreshInterval, cache.SourceWeather); err != nil {
		logging.Errorw(ctx, "Failed to cache weather", "error", err)
	}

	logging.Infow(ctx, "Weather refreshed",
		"location", current.LocationName, "background", report.Background, "forecast_days", len(report.Forecast))
	return report, nil
}
