package weather

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

const kyivCurrent = `{
  "coord": {"lon": 30.5234, "lat": 50.4501},
  "weather": [{"id": 500, "main": "Rain", "description": "light rain", "icon": "10d"}],
  "main": {"temp": 12.34, "feels_like": 11.2, "pressure": 1012, "humidity": 81},
  "wind": {"speed": 4.1, "deg": 250},
  "sys": {"country": "UA"},
  "name": "Kyiv",
  "dt": 1697544000
}`

const kyivForecast = `{
  "list": [
    {"dt": 1697554800, "dt_txt": "2023-10-17 15:00:00", "main": {"temp": 13.1}, "weather": [{"description": "overcast clouds"}]},
    {"dt": 1697565600, "dt_txt": "2023-10-17 18:00:00", "main": {"temp": 10.0}, "weather": [{"description": "clear sky"}]},
    {"dt": 1697587200, "dt_txt": "2023-10-18 00:00:00", "main": {"temp": 7.5}, "weather": [{"description": "light snow"}]},
    {"dt": 1697673600, "dt_txt": "2023-10-19 00:00:00", "main": {"temp": 6.3}, "weather": [{"description": "thunderstorm"}]},
    {"dt": 1697760000, "dt_txt": "2023-10-20 00:00:00", "main": {"temp": 9.0}, "weather": [{"description": "mist"}]}
  ]
}`

var kyiv = geo.Point{Latitude: 50.4501, Longitude: 30.5234}

func fastBackoff() BackoffConfig {
	return BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestGetCurrentWeather(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		q := req.URL.Query()
		return req.URL.Path == "/data/2.5/weather" &&
			q.Get("lat") == "50.450100" &&
			q.Get("lon") == "30.523400" &&
			q.Get("units") == "metric" &&
			q.Get("lang") == "en" &&
			q.Get("appid") == "test-api-key"
	})).Return(createMockResponse(200, kyivCurrent), nil)

	client := NewClientWithHTTPDoer("test-api-key", DefaultBaseURL, mockHTTP)
	c, err := client.GetCurrentWeather(context.Background(), kyiv, "en")

	require.NoError(t, err)
	assert.Equal(t, "Kyiv", c.LocationName)
	assert.Equal(t, "UA", c.Country)
	assert.Equal(t, "Light rain", c.Description)
	assert.Equal(t, "Rain", c.Main)
	assert.InDelta(t, 12.34, c.TemperatureC, 1e-9)
	assert.Equal(t, 81, c.HumidityPct)
	assert.Equal(t, 1012, c.PressureHpa)
	assert.Equal(t, time.Unix(1697544000, 0).UTC(), c.ObservedAt)
	mockHTTP.AssertExpectations(t)
}

func TestGetForecast_Daily(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(200, kyivForecast), nil)

	client := NewClientWithHTTPDoer("test-api-key", DefaultBaseURL, mockHTTP)
	entries, err := client.GetForecast(context.Background(), kyiv, "en")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	days := Daily(entries, ForecastDays)
	require.Len(t, days, 3)
	assert.Equal(t, "2023-10-17", days[0].Date)
	assert.Equal(t, "Overcast clouds", days[0].Description, "first reading of the day wins")
	assert.Equal(t, "2023-10-19", days[2].Date)
	assert.Equal(t, "17.10: 13.1 °C, Overcast clouds", days[0].String())
	assert.Equal(t, "19.10: 6.3 °C, Thunderstorm", days[2].String())
}

func TestClient_InvalidKeyIsNotRetried(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.Anything).Return(createMockResponse(401, `{"cod":401}`), nil).Once()

	client := NewClientWithHTTPDoer("bad", DefaultBaseURL, mockHTTP).WithBackoff(fastBackoff())
	_, err := client.GetCurrentWeather(context.Background(), kyiv, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAPIKey))
	mockHTTP.AssertNumberOfCalls(t, "Do", 1)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.Anything).Return(createMockResponse(503, "unavailable"), nil).Once()
	mockHTTP.On("Do", mock.Anything).Return(createMockResponse(200, kyivCurrent), nil).Once()

	client := NewClientWithHTTPDoer("key", DefaultBaseURL, mockHTTP).WithBackoff(fastBackoff())
	c, err := client.GetCurrentWeather(context.Background(), kyiv, "")

	require.NoError(t, err)
	assert.Equal(t, "Kyiv", c.LocationName)
	mockHTTP.AssertNumberOfCalls(t, "Do", 2)
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	client := NewClientWithHTTPDoer("key", DefaultBaseURL, mockHTTP).WithBackoff(fastBackoff())
	_, err := client.GetForecast(context.Background(), kyiv, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	mockHTTP.AssertNumberOfCalls(t, "Do", 3)
}

func TestClient_MissingKeyAndBadPoint(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	client := NewClientWithHTTPDoer("", DefaultBaseURL, mockHTTP)

	_, err := client.GetCurrentWeather(context.Background(), kyiv, "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	client = NewClientWithHTTPDoer("key", DefaultBaseURL, mockHTTP)
	_, err = client.GetCurrentWeather(context.Background(), geo.Point{Latitude: 91}, "")
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	mockHTTP.AssertNotCalled(t, "Do", mock.Anything)
}

func TestBackgroundKey(t *testing.T) {
	tests := map[string]string{
		"Thunderstorm with light rain": BackgroundStorm,
		"Light rain":                   BackgroundRain,
		"Shower drizzle":               BackgroundRain,
		"Light snow":                   BackgroundSnow,
		"Broken clouds":                BackgroundClouds,
		"Mist":                         BackgroundClouds,
		"Clear sky":                    BackgroundClear,
		"Sunny":                        BackgroundClear,
		"Haze":                         BackgroundDefault,
		"":                             BackgroundDefault,
	}
	for desc, want := range tests {
		t.Run(desc, func(t *testing.T) {
			assert.Equal(t, want, BackgroundKey(desc))
		})
	}
}

func TestSummary(t *testing.T) {
	c := &Conditions{
		LocationName: "Kyiv",
		Country:      "UA",
		Description:  "Light rain",
		TemperatureC: 12.34,
		FeelsLikeC:   11.2,
		HumidityPct:  81,
		PressureHpa:  1012,
		WindSpeedMs:  4.1,
		ObservedAt:   time.Date(2023, 10, 17, 12, 0, 0, 0, time.UTC),
	}

	want := "📍 Kyiv, UA\n" +
		"🌤 Light rain\n" +
		"🌡 12.3 °C (feels like 11.2 °C)\n" +
		"💧 Humidity: 81%\n" +
		"🔽 Pressure: 1012 hPa\n" +
		"💨 Wind: 4.1 m/s\n" +
		"⏰ Updated: 2023-10-17 12:00 UTC"
	assert.Equal(t, want, Summary(c))

	assert.Contains(t, Summary(&Conditions{}), "📍 Unknown place")
}
