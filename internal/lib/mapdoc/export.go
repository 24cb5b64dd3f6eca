package mapdoc

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-kml/v2"
)

// WriteKML writes the markers as KML placemarks. With two or more markers a
// LineString through them is added as well.
func WriteKML(w io.Writer, name string, markers []Marker) error {
	children := []kml.Element{kml.Name(name)}

	coords := make([]kml.Coordinate, 0, len(markers))
	for _, m := range markers {
		c := kml.Coordinate{Lon: m.Point.Longitude, Lat: m.Point.Latitude}
		coords = append(coords, c)
		children = append(children, kml.Placemark(
			kml.Name(m.Label),
			kml.Description(fmt.Sprintf("%s marker", m.Color)),
			kml.Point(kml.Coordinates(c)),
		))
	}

	if len(coords) >= 2 {
		children = append(children, kml.Placemark(
			kml.Name("Measured path"),
			kml.LineString(kml.Coordinates(coords...)),
		))
	}

	k := kml.KML(kml.Document(children...))
	if err := k.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

// GeoJSON returns the markers as a FeatureCollection. Properties carry the
// label and color; extra properties are applied to the path feature.
func GeoJSON(markers []Marker, pathProps map[string]interface{}) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, 0, len(markers))
	for _, m := range markers {
		p := orb.Point{m.Point.Longitude, m.Point.Latitude}
		line = append(line, p)

		f := geojson.NewFeature(p)
		f.Properties["label"] = m.Label
		f.Properties["color"] = m.Color
		fc.Append(f)
	}

	if len(line) >= 2 {
		f := geojson.NewFeature(line)
		f.Properties["label"] = "Measured path"
		for k, v := range pathProps {
			f.Properties[k] = v
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}
