package geo

import "time"

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline"`
	Points          []Point `json:"points"`
}

// DistanceResult is the derived measurement between two markers. It is
// recomputed as a whole whenever both markers are placed.
type DistanceResult struct {
	Meters     float64       `json:"meters"`
	Kilometers float64       `json:"kilometers"`
	WalkTime   time.Duration `json:"walk_time"`
	CarTime    time.Duration `json:"car_time"`

	// Formatted travel times, "unknown" when the speed was not positive.
	WalkTimeText string `json:"walk_time_text"`
	CarTimeText  string `json:"car_time_text"`

	WalkSpeedKmh  float64 `json:"walk_speed_kmh"`
	DriveSpeedKmh float64 `json:"drive_speed_kmh"`
}
