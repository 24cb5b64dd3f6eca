package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrNotFound   = errors.New("no location found")
)

// LookupFunc resolves an address to a location
type LookupFunc func(address geocoder.Address) (geocoder.Location, error)

// ReverseFunc resolves a location to candidate addresses
type ReverseFunc func(location geocoder.Location) ([]geocoder.Address, error)

// Result is a resolved search
type Result struct {
	Query   string    `json:"query"`
	Point   geo.Point `json:"point"`
	Address string    `json:"address,omitempty"`
}

// resolver turns a non-empty query into a point and a display address. A zero
// point means nothing matched.
type resolver interface {
	resolve(ctx context.Context, query string) (geo.Point, string, error)
	name() string
}

// Client searches places with Google geocoding when an API key is set and
// with keyless OpenStreetMap Nominatim otherwise
type Client struct {
	resolver resolver
}

// NewClient picks the provider for apiKey. The Google key is package-level
// state in kelvins/geocoder.
func NewClient(apiKey string) *Client {
	if strings.TrimSpace(apiKey) == "" {
		return NewNominatimClient(DefaultNominatimURL, nil)
	}
	geocoder.ApiKey = apiKey
	return NewClientWithFuncs(geocoder.Geocoding, geocoder.GeocodingReverse)
}

// NewClientWithFuncs creates a client over custom lookups, for tests
func NewClientWithFuncs(lookup LookupFunc, reverse ReverseFunc) *Client {
	return &Client{resolver: &googleResolver{lookup: lookup, reverse: reverse}}
}

// Provider names the geocoding backend in use
func (c *Client) Provider() string {
	return c.resolver.name()
}

// Search resolves free text to a point
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	p, address, err := c.resolver.resolve(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}
	if p == (geo.Point{}) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	if err := geo.Validate(p); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}

	return &Result{Query: query, Point: p, Address: address}, nil
}

type googleResolver struct {
	lookup  LookupFunc
	reverse ReverseFunc
}

func (g *googleResolver) name() string { return "google" }

// The upstream call is not cancellable, so ctx only bounds how long the
// caller waits.
func (g *googleResolver) resolve(ctx context.Context, query string) (geo.Point, string, error) {
	type outcome struct {
		loc geocoder.Location
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{Street: query})
		done <- outcome{loc, err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return geo.Point{}, "", ctx.Err()
	case out = <-done:
	}
	if out.err != nil {
		return geo.Point{}, "", out.err
	}

	p := geo.Point{Latitude: out.loc.Latitude, Longitude: out.loc.Longitude}
	var address string
	if g.reverse != nil && p != (geo.Point{}) {
		if addresses, err := g.reverse(out.loc); err == nil && len(addresses) > 0 {
			address = addresses[0].FormatAddress()
		}
	}
	return p, address, nil
}
