package measure

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// Status messages for the non-measuring transitions
const (
	StatusMarkerASet     = "Marker A set; click again for B"
	StatusMarkerBCleared = "Marker B cleared; new Marker A set"
)

var printer = message.NewPrinter(language.English)

// Report renders the full two-marker report:
//
//	Marker A: (lat, lon)
//	Marker B: (lat, lon)
//
//	Distance: 1,234 m (~1.23 km)
//	Walking (~5 km/h): 15 minutes
//	Driving (~50 km/h): 1 minute
func Report(a, b geo.Point, r geo.DistanceResult) string {
	return fmt.Sprintf("Marker A: (%.5f, %.5f)\n", a.Latitude, a.Longitude) +
		fmt.Sprintf("Marker B: (%.5f, %.5f)\n\n", b.Latitude, b.Longitude) +
		fmt.Sprintf("Distance: %s m (~%.2f km)\n", printer.Sprintf("%.0f", r.Meters), r.Kilometers) +
		fmt.Sprintf("Walking (~%s km/h): %s\n", speed(r.WalkSpeedKmh), r.WalkTimeText) +
		fmt.Sprintf("Driving (~%s km/h): %s", speed(r.DriveSpeedKmh), r.CarTimeText)
}

func speed(kmh float64) string {
	return strconv.FormatFloat(kmh, 'f', -1, 64)
}
