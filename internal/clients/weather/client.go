package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// DefaultBaseURL is the OpenWeatherMap API root
const DefaultBaseURL = "https://api.openweathermap.org"

// HTTPDoer is the subset of *http.Client used by Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the OpenWeatherMap current and forecast APIs
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	circuit    *gobreaker.CircuitBreaker
	backoff    BackoffConfig
}

// NewClient creates a new OpenWeatherMap API client
func NewClient(apiKey string) *Client {
	return NewClientWithHTTPDoer(apiKey, DefaultBaseURL, &http.Client{Timeout: 15 * time.Second})
}

// NewClientWithHTTPDoer creates a client with a custom transport, for tests
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
		circuit:    newCircuitBreaker("openweathermap"),
		backoff:    DefaultBackoff(),
	}
}

// WithBackoff overrides the retry policy
func (c *Client) WithBackoff(b BackoffConfig) *Client {
	c.backoff = b
	return c
}

// GetCurrentWeather retrieves current conditions at p
func (c *Client) GetCurrentWeather(ctx context.Context, p geo.Point, lang string) (*Conditions, error) {
	var response currentResponse
	if err := c.get(ctx, "/data/2.5/weather", p, lang, &response); err != nil {
		return nil, err
	}
	return response.conditions(), nil
}

// GetForecast retrieves the 5 day forecast in 3 hour steps at p
func (c *Client) GetForecast(ctx context.Context, p geo.Point, lang string) ([]ForecastEntry, error) {
	var response forecastResponse
	if err := c.get(ctx, "/data/2.5/forecast", p, lang, &response); err != nil {
		return nil, err
	}

	entries := make([]ForecastEntry, 0, len(response.List))
	for _, item := range response.List {
		entries = append(entries, item.entry())
	}
	return entries, nil
}

func (c *Client) get(ctx context.Context, path string, p geo.Point, lang string, out interface{}) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	if err := geo.Validate(p); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", p.Latitude))
	params.Set("lon", fmt.Sprintf("%.6f", p.Longitude))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	if lang != "" {
		params.Set("lang", lang)
	}
	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	resp, err := c.doRequest(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, requestURL, nil)
	})
	if err != nil {
		return fmt.Errorf("weather request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

type currentResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []weatherItem `json:"weather"`
	Main    mainBlock     `json:"main"`
	Wind    struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Name string `json:"name"`
	Dt   int64  `json:"dt"`
}

type forecastResponse struct {
	List []forecastItem `json:"list"`
}

type forecastItem struct {
	Dt      int64         `json:"dt"`
	DtTxt   string        `json:"dt_txt"`
	Main    mainBlock     `json:"main"`
	Weather []weatherItem `json:"weather"`
}

type weatherItem struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type mainBlock struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
}

func (r currentResponse) conditions() *Conditions {
	c := &Conditions{
		LocationName:  r.Name,
		Country:       r.Sys.Country,
		Coordinates:   geo.Point{Latitude: r.Coord.Lat, Longitude: r.Coord.Lon},
		TemperatureC:  r.Main.Temp,
		FeelsLikeC:    r.Main.FeelsLike,
		HumidityPct:   r.Main.Humidity,
		PressureHpa:   r.Main.Pressure,
		WindSpeedMs:   r.Wind.Speed,
		WindDirection: r.Wind.Deg,
	}
	if len(r.Weather) > 0 {
		c.Main = r.Weather[0].Main
		c.Description = capitalize(r.Weather[0].Description)
		c.Icon = r.Weather[0].Icon
	}
	if r.Dt > 0 {
		c.ObservedAt = time.Unix(r.Dt, 0).UTC()
	}
	return c
}

func (i forecastItem) entry() ForecastEntry {
	e := ForecastEntry{
		Time:         time.Unix(i.Dt, 0).UTC(),
		TemperatureC: i.Main.Temp,
	}
	if len(i.DtTxt) >= 10 {
		e.Date = i.DtTxt[:10]
	} else {
		e.Date = e.Time.Format("2006-01-02")
	}
	if len(i.Weather) > 0 {
		e.Description = capitalize(i.Weather[0].Description)
	}
	return e
}
