package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dpup/mapweather/server/internal/cache"
	"github.com/dpup/mapweather/server/internal/clients/geocode"
	"github.com/dpup/mapweather/server/internal/clients/weather"
	"github.com/dpup/mapweather/server/internal/config"
	"github.com/dpup/mapweather/server/internal/lib/assistant"
	"github.com/dpup/mapweather/server/internal/lib/bridge"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
	"github.com/dpup/mapweather/server/internal/lib/measure"
	"github.com/dpup/mapweather/server/internal/observability"
	"github.com/dpup/mapweather/server/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	// Load configuration using Prefab's config system
	appConfig := loadConfig()
	ctx, cancel := baseContext()
	defer cancel()

	collector, err := observability.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	cacheInstance := cache.NewCache()

	// Render loop: owns document builds and publication
	builder := mapdoc.NewBuilder(mapdoc.Options{
		BridgeEndpoint:  services.RouteBridge,
		UpdatesEndpoint: services.RouteMapUpdates,
	})
	renderer := services.NewMapRenderer(builder, mapdoc.NewFileWriter(appConfig.Map.DocumentPath),
		appConfig.Map.Center.Point(), appConfig.Map.Zoom, collector)
	if err := renderer.RenderNow(ctx); err != nil {
		log.Fatalf("Failed to render initial map: %v", err)
	}

	// Host event loop: the only writer of measurement state
	board := services.NewStatusBoard()
	speeds := measure.Speeds{
		WalkKmh:  appConfig.Measurement.WalkSpeedKmh,
		DriveKmh: appConfig.Measurement.DriveSpeedKmh,
	}
	machine := measure.NewMachine(speeds, board, renderer, measure.WithTransitionRecorder(collector))
	eventBridge := bridge.New(
		bridge.WithDedupe(appConfig.Bridge.DedupeConsecutive),
		bridge.WithRecorder(collector),
	)
	host := services.NewMapHost(eventBridge, machine, appConfig.Bridge.InboxSize)

	weatherService := services.NewWeatherService(
		weather.NewClient(appConfig.Weather.OpenWeatherAPIKey), cacheInstance, appConfig.Weather)
	geocoder := geocode.NewClient(appConfig.Geocoder.APIKey)
	logging.Infow(ctx, "Place search configured", "provider", geocoder.Provider())
	searchService := services.NewSearchService(geocoder, renderer, appConfig.Geocoder.Zoom)
	placeAssistant := assistant.NewCachedAssistant(
		assistant.NewAssistant(appConfig.Assistant.APIKey, appConfig.Assistant.Model, appConfig.Assistant.Language),
		cacheInstance, appConfig.Assistant.CacheTTL)

	var refresher services.WeatherRefresher
	if appConfig.Weather.OpenWeatherAPIKey != "" {
		refresher = weatherService
	} else {
		logging.Warnw(ctx, "OpenWeatherMap API key not configured; weather refresh disabled")
	}
	periodicRefresh := services.NewPeriodicRefreshService(refresher, renderer, cacheInstance,
		appConfig.Weather.RefreshInterval, appConfig.Weather.StaleThreshold)
	if err := periodicRefresh.Start(ctx); err != nil {
		log.Printf("Failed to start periodic refresh: %v", err)
	}
	defer periodicRefresh.Stop()

	go renderer.Run(ctx)
	go host.Run(ctx)

	handlers := &services.Handlers{
		Host:           host,
		Renderer:       renderer,
		Board:          board,
		WeatherService: weatherService,
		SearchService:  searchService,
		Assistant:      placeAssistant,
		UpdateTimeout:  appConfig.Map.UpdateTimeout,
	}

	logging.Infow(ctx, "Map measurement server starting",
		"center", appConfig.Map.Center, "zoom", appConfig.Map.Zoom,
		"document_path", appConfig.Map.DocumentPath, "walk_kmh", speeds.WalkKmh, "drive_kmh", speeds.DriveKmh)

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc(services.RouteHome, handlers.Home),
		prefab.WithHTTPHandlerFunc(services.RouteBridge, handlers.Bridge),
		prefab.WithHTTPHandlerFunc(services.RouteMapUpdates, handlers.MapUpdates),
		prefab.WithHTTPHandlerFunc(services.RouteMeasurement, handlers.Measurement),
		prefab.WithHTTPHandlerFunc(services.RouteKML, handlers.MeasurementKML),
		prefab.WithHTTPHandlerFunc(services.RouteGeoJSON, handlers.MeasurementGeoJSON),
		prefab.WithHTTPHandlerFunc(services.RouteWeather, handlers.Weather),
		prefab.WithHTTPHandlerFunc(services.RouteWeatherReport, handlers.ExportWeatherReport),
		prefab.WithHTTPHandlerFunc(services.RouteSearch, handlers.SearchPlace),
		prefab.WithHTTPHandlerFunc(services.RouteAssistant, handlers.Ask),
		prefab.WithHTTPHandlerFunc(services.RouteMetrics, collector.Handler().ServeHTTP),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// baseContext carries the logger used by the background loops. prefab only
// attaches one to request contexts.
func baseContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(logging.With(context.Background(), logging.NewProdLogger()))
}

// loadConfig overlays prefab.yaml and PF__ environment variables on the
// defaults. API keys may also come from plain environment variables.
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := []struct {
		key    string
		target interface{}
	}{
		{"map", &appConfig.Map},
		{"measurement", &appConfig.Measurement},
		{"bridge", &appConfig.Bridge},
		{"weather", &appConfig.Weather},
		{"geocoder", &appConfig.Geocoder},
		{"assistant", &appConfig.Assistant},
	}
	for _, s := range sections {
		if err := prefab.Config.Unmarshal(s.key, s.target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", s.key, err)
		}
	}

	envFallback(&appConfig.Weather.OpenWeatherAPIKey, "OPENWEATHER_API_KEY")
	envFallback(&appConfig.Geocoder.APIKey, "GOOGLE_MAPS_API_KEY")
	envFallback(&appConfig.Assistant.APIKey, "OPENAI_API_KEY")

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return appConfig
}

func envFallback(target *string, key string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	*target = os.Getenv(key)
}
