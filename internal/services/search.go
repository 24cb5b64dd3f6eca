package services

import (
	"context"
	"fmt"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/mapweather/server/internal/clients/geocode"
)

// Geocoder resolves free text to a location
type Geocoder interface {
	Search(ctx context.Context, query string) (*geocode.Result, error)
}

// SearchService recenters the map on geocoded places
type SearchService struct {
	geocoder Geocoder
	renderer *MapRenderer
	zoom     int
}

// NewSearchService creates a SearchService that zooms to zoom on a hit
func NewSearchService(g Geocoder, r *MapRenderer, zoom int) *SearchService {
	return &SearchService{geocoder: g, renderer: r, zoom: zoom}
}

// Search geocodes query and requests a rebuild centered on the result. The
// placed markers are kept.
func (s *SearchService) Search(ctx context.Context, query string) (*geocode.Result, error) {
	result, err := s.geocoder.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.renderer.SetView(result.Point, s.zoom); err != nil {
		return nil, fmt.Errorf("recenter on %q: %w", query, err)
	}
	logging.Infow(ctx, "Map recentered on search result",
		"query", result.Query, "lat", result.Point.Latitude, "lng", result.Point.Longitude)
	return result, nil
}
