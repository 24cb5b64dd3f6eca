package cache

import (
	"fmt"
	"time"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// Sources recorded on entries
const (
	SourceWeather   = "openweathermap"
	SourceAssistant = "openai"
)

// WeatherKey buckets a point to roughly 100 m so nearby lookups share an entry
func WeatherKey(p geo.Point) string {
	return fmt.Sprintf("weather:%.3f,%.3f", p.Latitude, p.Longitude)
}

// AnswerKey is the key for an assistant answer by query hash
func AnswerKey(queryHash string) string {
	return "assistant:" + queryHash
}

// SetAnswer caches an assistant answer under its query hash
func (c *Cache) SetAnswer(queryHash string, answer interface{}, ttl time.Duration) error {
	return c.Set(AnswerKey(queryHash), answer, ttl, SourceAssistant)
}

// GetAnswer decodes a fresh cached answer into out
func (c *Cache) GetAnswer(queryHash string, out interface{}) (bool, error) {
	return c.Get(AnswerKey(queryHash), out)
}
