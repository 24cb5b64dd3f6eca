package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5.0, cfg.Measurement.WalkSpeedKmh)
	assert.Equal(t, 50.0, cfg.Measurement.DriveSpeedKmh)
	assert.Equal(t, 6, cfg.Map.Zoom)
	assert.InDelta(t, 50.4501, cfg.Map.Center.Point().Latitude, 1e-9)
	assert.False(t, cfg.Bridge.DedupeConsecutive)
}

func TestValidate_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Map.Center.Latitude = 120
	cfg.Map.Zoom = 30
	cfg.Measurement.WalkSpeedKmh = math.NaN()
	cfg.Bridge.InboxSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map.center")
	assert.Contains(t, err.Error(), "map.zoom")
	assert.Contains(t, err.Error(), "speeds must be finite")
	assert.Contains(t, err.Error(), "bridge.inbox_size")
}

func TestValidate_ZeroSpeedAllowed(t *testing.T) {
	// A zero speed yields "unknown" estimates rather than a startup failure
	cfg := DefaultConfig()
	cfg.Measurement.DriveSpeedKmh = 0
	assert.NoError(t, cfg.Validate())
}
