package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

func TestSearch(t *testing.T) {
	var gotAddress geocoder.Address
	lookup := func(a geocoder.Address) (geocoder.Location, error) {
		gotAddress = a
		return geocoder.Location{Latitude: 49.8397, Longitude: 24.0297}, nil
	}
	reverse := func(l geocoder.Location) ([]geocoder.Address, error) {
		return []geocoder.Address{{City: "Lviv", Country: "Ukraine"}}, nil
	}

	c := NewClientWithFuncs(lookup, reverse)
	result, err := c.Search(context.Background(), "  Lviv  ")

	require.NoError(t, err)
	assert.Equal(t, "Lviv", gotAddress.Street)
	assert.Equal(t, geo.Point{Latitude: 49.8397, Longitude: 24.0297}, result.Point)
	assert.Equal(t, "Lviv", result.Query)
	assert.Contains(t, result.Address, "Lviv")
}

func TestSearch_Errors(t *testing.T) {
	c := NewClientWithFuncs(func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("ZERO_RESULTS")
	}, nil)

	_, err := c.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = c.Search(context.Background(), "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZERO_RESULTS")

	c = NewClientWithFuncs(func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, nil
	}, nil)
	_, err = c.Search(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c := NewClientWithFuncs(func(geocoder.Address) (geocoder.Location, error) {
		<-block
		return geocoder.Location{}, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "Kyiv")
	assert.ErrorIs(t, err, context.Canceled)
}
