package geo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/twpayne/go-polyline"
)

// Earth's mean radius in meters
const EarthRadiusMeters = 6371000.0

// UnknownTravelTime is returned by TravelTime when no estimate is possible.
const UnknownTravelTime = "unknown"

// ErrInvalidCoordinate is returned when a point is outside the valid range
var ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

var validate = validator.New()

// Validate checks that the point lies within latitude/longitude bounds
func Validate(p Point) error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return ErrInvalidCoordinate
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinate, err)
	}
	return nil
}

// Distance calculates great-circle distance between two points using the
// Haversine formula. Returns meters and kilometers.
func Distance(a, b Point) (float64, float64) {
	if a == b {
		return 0, 0
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dlat := (b.Latitude - a.Latitude) * math.Pi / 180
	dlon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	// Rounding can push h just past 1 for near-antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	meters := EarthRadiusMeters * c
	return meters, meters / 1000
}

// TravelDuration estimates how long distanceKm takes at speedKmh, rounded to
// the nearest whole minute (half away from zero). The second return is false
// when speedKmh is not positive.
func TravelDuration(distanceKm, speedKmh float64) (time.Duration, bool) {
	if speedKmh <= 0 || math.IsNaN(speedKmh) {
		return 0, false
	}
	totalMinutes := int64(math.Round(distanceKm / speedKmh * 60))
	return time.Duration(totalMinutes) * time.Minute, true
}

// TravelTime formats the travel estimate as "M minutes" or "H hours M minutes".
func TravelTime(distanceKm, speedKmh float64) string {
	d, ok := TravelDuration(distanceKm, speedKmh)
	if !ok {
		return UnknownTravelTime
	}
	return FormatDuration(d)
}

// FormatDuration renders a whole-minute duration as used in travel estimates
func FormatDuration(d time.Duration) string {
	totalMinutes := int64(d / time.Minute)
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	if hours == 0 {
		return plural(minutes, "minute")
	}
	return plural(hours, "hour") + " " + plural(minutes, "minute")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Measure computes the full distance result between two markers
func Measure(a, b Point, walkSpeedKmh, driveSpeedKmh float64) DistanceResult {
	meters, km := Distance(a, b)
	walk, _ := TravelDuration(km, walkSpeedKmh)
	car, _ := TravelDuration(km, driveSpeedKmh)

	return DistanceResult{
		Meters:        meters,
		Kilometers:    km,
		WalkTime:      walk,
		CarTime:       car,
		WalkTimeText:  TravelTime(km, walkSpeedKmh),
		CarTimeText:   TravelTime(km, driveSpeedKmh),
		WalkSpeedKmh:  walkSpeedKmh,
		DriveSpeedKmh: driveSpeedKmh,
	}
}

// EncodePath encodes points as a Google polyline string
func EncodePath(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes Google polyline string to point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if err := Validate(points[i]); err != nil {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}
