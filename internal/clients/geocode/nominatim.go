package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// DefaultNominatimURL is the public OpenStreetMap search service
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim's usage policy requires an identifying agent
const nominatimUserAgent = "mapweather-server/1.0"

// HTTPDoer is the subset of http.Client used by the Nominatim resolver
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewNominatimClient creates a keyless client. A nil doer uses an
// http.Client with a 15 second timeout.
func NewNominatimClient(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{resolver: &nominatimResolver{baseURL: baseURL, http: doer}}
}

type nominatimResolver struct {
	baseURL string
	http    HTTPDoer
}

// nominatimPlace mirrors the parts of a /search hit we use
type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (n *nominatimResolver) name() string { return "nominatim" }

func (n *nominatimResolver) resolve(ctx context.Context, query string) (geo.Point, string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return geo.Point{}, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Point{}, "", ctx.Err()
		}
		return geo.Point{}, "", fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return geo.Point{}, "", fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, body)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return geo.Point{}, "", fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(places) == 0 {
		return geo.Point{}, "", nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return geo.Point{}, "", fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return geo.Point{}, "", fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}
	return geo.Point{Latitude: lat, Longitude: lon}, places[0].DisplayName, nil
}
