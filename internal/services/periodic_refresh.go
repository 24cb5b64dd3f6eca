package services

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	perrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/go-co-op/gocron"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// WeatherRefresher refreshes weather for a point
type WeatherRefresher interface {
	Refresh(ctx context.Context, p geo.Point) (*WeatherReport, error)
}

// ViewSource reports the current map center
type ViewSource interface {
	View() (geo.Point, int)
}

// CacheCleaner drops entries past their usefulness
type CacheCleaner interface {
	CleanupOlderThan(maxAge time.Duration) int
}

// PeriodicRefreshService keeps weather at the map center warm and evicts
// entries too old to serve even as stale data
type PeriodicRefreshService struct {
	scheduler *gocron.Scheduler
	weather   WeatherRefresher
	view      ViewSource
	cache     CacheCleaner

	refreshInterval time.Duration
	maxAge          time.Duration

	mu      sync.Mutex
	running bool
}

// NewPeriodicRefreshService creates a new periodic refresh service. weather
// may be nil, in which case only cache cleanup runs.
func NewPeriodicRefreshService(weather WeatherRefresher, view ViewSource, cache CacheCleaner, refreshInterval, maxAge time.Duration) *PeriodicRefreshService {
	return &PeriodicRefreshService{
		scheduler:       gocron.NewScheduler(time.UTC),
		weather:         weather,
		view:            view,
		cache:           cache,
		refreshInterval: refreshInterval,
		maxAge:          maxAge,
	}
}

// Start schedules the jobs; each runs once immediately
func (p *PeriodicRefreshService) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	p.scheduler.SingletonModeAll()

	if p.weather != nil {
		if _, err := p.scheduler.Every(p.refreshInterval).Tag("weather-refresh").Do(func() {
			p.refreshWeather(ctx)
		}); err != nil {
			return err
		}
	}

	cleanupEvery := p.maxAge / 2
	if cleanupEvery <= 0 {
		cleanupEvery = 5 * time.Minute
	}
	if _, err := p.scheduler.Every(cleanupEvery).Tag("cache-cleanup").WaitForSchedule().Do(func() {
		p.cleanup(ctx)
	}); err != nil {
		return err
	}

	p.scheduler.StartAsync()
	p.running = true
	logging.Infow(ctx, "Periodic refresh started",
		"weather_interval", p.refreshInterval, "cleanup_interval", cleanupEvery)
	return nil
}

// Stop gracefully stops the periodic refresh
func (p *PeriodicRefreshService) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.scheduler.Stop()
	p.running = false
}

// IsRunning returns whether periodic refresh is active
func (p *PeriodicRefreshService) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PeriodicRefreshService) refreshWeather(ctx context.Context) {
	defer recoverJob(ctx, "weather-refresh")

	center, _ := p.view.View()
	refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := p.weather.Refresh(refreshCtx, center); err != nil {
		logging.Warnw(ctx, "Periodic weather refresh failed", "error", err)
	}
}

func (p *PeriodicRefreshService) cleanup(ctx context.Context) {
	defer recoverJob(ctx, "cache-cleanup")

	if removed := p.cache.CleanupOlderThan(p.maxAge); removed > 0 {
		logging.Infow(ctx, "Cache cleanup removed entries", "removed", removed)
	}
}

func recoverJob(ctx context.Context, job string) {
	if r := recover(); r != nil {
		err, _ := perrors.ParseStack(debug.Stack())
		logging.Errorw(ctx, "Periodic job: recovered from panic",
			"job", job, "error", r, "error.stack_trace", err.MinimalStack(3, 5))
	}
}
