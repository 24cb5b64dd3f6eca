package weather

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// ErrMissingAPIKey is returned when no OpenWeatherMap key is configured
var ErrMissingAPIKey = errors.New("openweathermap api key is not configured")

// ForecastDays is how many days the daily forecast covers
const ForecastDays = 3

// Background keys, chosen from the weather description
const (
	BackgroundStorm   = "storm"
	BackgroundRain    = "rain"
	BackgroundSnow    = "snow"
	BackgroundClouds  = "clouds"
	BackgroundClear   = "clear"
	BackgroundDefault = "default"
)

// Conditions are the current weather at a location
type Conditions struct {
	LocationName  string    `json:"location_name"`
	Country       string    `json:"country,omitempty"`
	Coordinates   geo.Point `json:"coordinates"`
	Main          string    `json:"main"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon,omitempty"`
	TemperatureC  float64   `json:"temperature_c"`
	FeelsLikeC    float64   `json:"feels_like_c"`
	HumidityPct   int       `json:"humidity_pct"`
	PressureHpa   int       `json:"pressure_hpa"`
	WindSpeedMs   float64   `json:"wind_speed_ms"`
	WindDirection int       `json:"wind_direction_deg"`
	ObservedAt    time.Time `json:"observed_at"`
}

// ForecastEntry is one 3 hour forecast step
type ForecastEntry struct {
	Time         time.Time `json:"time"`
	Date         string    `json:"date"`
	TemperatureC float64   `json:"temperature_c"`
	Description  string    `json:"description"`
}

// DailyForecast is the first forecast step of a calendar day
type DailyForecast struct {
	Date         string  `json:"date"`
	TemperatureC float64 `json:"temperature_c"`
	Description  string  `json:"description"`
}

// String renders the day as "17.10: 12.3 °C, Light rain"
func (d DailyForecast) String() string {
	label := d.Date
	if t, err := time.Parse("2006-01-02", d.Date); err == nil {
		label = t.Format("02.01")
	}
	return fmt.Sprintf("%s: %.1f °C, %s", label, d.TemperatureC, d.Description)
}

// Daily keeps the first entry of each date, up to days dates
func Daily(entries []ForecastEntry, days int) []DailyForecast {
	seen := make(map[string]bool)
	var out []DailyForecast
	for _, e := range entries {
		if e.Date == "" || seen[e.Date] {
			continue
		}
		seen[e.Date] = true
		out = append(out, DailyForecast{Date: e.Date, TemperatureC: e.TemperatureC, Description: e.Description})
		if len(out) >= days {
			break
		}
	}
	return out
}

// Summary renders conditions as a multi-line human summary
func Summary(c *Conditions) string {
	name := c.LocationName
	if name == "" {
		name = "Unknown place"
	}
	if c.Country != "" {
		name += ", " + c.Country
	}

	desc := c.Description
	if desc == "" {
		desc = "—"
	}

	lines := []string{
		"📍 " + name,
		"🌤 " + desc,
		fmt.Sprintf("🌡 %.1f °C (feels like %.1f °C)", c.TemperatureC, c.FeelsLikeC),
		fmt.Sprintf("💧 Humidity: %d%%", c.HumidityPct),
		fmt.Sprintf("🔽 Pressure: %d hPa", c.PressureHpa),
		fmt.Sprintf("💨 Wind: %.1f m/s", c.WindSpeedMs),
	}
	if !c.ObservedAt.IsZero() {
		lines = append(lines, "⏰ Updated: "+c.ObservedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return strings.Join(lines, "\n")
}

// BackgroundKey picks a background theme from a weather description
func BackgroundKey(desc string) string {
	w := strings.ToLower(desc)
	has := func(words ...string) bool {
		for _, word := range words {
			if strings.Contains(w, word) {
				return true
			}
		}
		return false
	}

	switch {
	case has("thunder", "storm"):
		return BackgroundStorm
	case has("rain", "drizzle", "shower"):
		return BackgroundRain
	case has("snow", "sleet", "ice"):
		return BackgroundSnow
	case has("cloud", "overcast", "broken", "scattered", "mist", "fog"):
		return BackgroundClouds
	case has("clear", "sun"):
		return BackgroundClear
	default:
		return BackgroundDefault
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
