package mapdoc

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// Zoom bounds supported by the tile providers
const (
	MinZoom = 0
	MaxZoom = 19
)

// Marker is a secondary map marker such as measurement point A or B
type Marker struct {
	Point geo.Point `json:"point"`
	Label string    `json:"label"`
	Color string    `json:"color"`
}

// TileLayer describes one selectable base layer
type TileLayer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// DefaultTileLayers are the standard, light and dark base maps
var DefaultTileLayers = []TileLayer{
	{
		Name:        "Standard",
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
	},
	{
		Name:        "Light",
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
	},
	{
		Name:        "Dark",
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
	},
}

// Document is a rendered, self-contained map page
type Document struct {
	ID      string
	Center  geo.Point
	Zoom    int
	Markers []Marker
	HTML    []byte
	BuiltAt time.Time
}

// RenderError reports a failure to build or persist a map document.
// Marker state is never affected by it.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("map document %s failed: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ErrInvalidZoom is returned when the zoom level is outside [MinZoom, MaxZoom]
var ErrInvalidZoom = errors.New("zoom level out of range")

// Options controls where the embedded script sends messages
type Options struct {
	// BridgeEndpoint receives double-click messages as text/plain POSTs.
	// The script always sets document.title as well.
	BridgeEndpoint string

	// UpdatesEndpoint is long-polled to learn about newer documents.
	UpdatesEndpoint string

	TileLayers []TileLayer
}

// Builder produces map documents
type Builder struct {
	opts Options
	tmpl *template.Template
}

// NewBuilder creates a Builder; empty TileLayers fall back to DefaultTileLayers
func NewBuilder(opts Options) *Builder {
	if len(opts.TileLayers) == 0 {
		opts.TileLayers = DefaultTileLayers
	}
	return &Builder{
		opts: opts,
		tmpl: template.Must(template.New("map").Parse(pageTemplate)),
	}
}

type pageConfig struct {
	ID      string         `json:"id"`
	Prefix  string         `json:"prefix"`
	Center  geo.Point      `json:"center"`
	Zoom    int            `json:"zoom"`
	Tiles   []TileLayer    `json:"tiles"`
	Markers []markerConfig `json:"markers"`
	Bridge  string         `json:"bridge"`
	Updates string         `json:"updates"`
}

type markerConfig struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
	Color string  `json:"color"`
}

// Build renders a map centered on center with a primary marker there and the
// given secondary markers.
func (b *Builder) Build(center geo.Point, zoom int, markers []Marker) (*Document, error) {
	if err := geo.Validate(center); err != nil {
		return nil, &RenderError{Stage: "build", Err: err}
	}
	if zoom < MinZoom || zoom > MaxZoom {
		return nil, &RenderError{Stage: "build", Err: fmt.Errorf("%w: %d", ErrInvalidZoom, zoom)}
	}

	cfg := pageConfig{
		ID:      uuid.NewString(),
		Prefix:  ChannelPrefix,
		Center:  center,
		Zoom:    zoom,
		Tiles:   b.opts.TileLayers,
		Markers: make([]markerConfig, 0, len(markers)),
		Bridge:  b.opts.BridgeEndpoint,
		Updates: b.opts.UpdatesEndpoint,
	}
	for _, m := range markers {
		if err := geo.Validate(m.Point); err != nil {
			return nil, &RenderError{Stage: "build", Err: fmt.Errorf("marker %q: %w", m.Label, err)}
		}
		color := m.Color
		if color == "" {
			color = "green"
		}
		cfg.Markers = append(cfg.Markers, markerConfig{
			Lat:   m.Point.Latitude,
			Lng:   m.Point.Longitude,
			Label: m.Label,
			Color: color,
		})
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, cfg); err != nil {
		return nil, &RenderError{Stage: "build", Err: err}
	}

	return &Document{
		ID:      cfg.ID,
		Center:  center,
		Zoom:    zoom,
		Markers: append([]Marker(nil), markers...),
		HTML:    buf.Bytes(),
		BuiltAt: time.Now(),
	}, nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Map</title>
    <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
    <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
    <style>
        html, body, #map { height: 100%; margin: 0; }
    </style>
</head>
<body>
<div id="map"></div>
<script>
(function() {
    var cfg = {{.}};
    var map = L.map('map', {doubleClickZoom: false}).setView([cfg.center.lat, cfg.center.lng], cfg.zoom);

    var layers = {};
    cfg.tiles.forEach(function(t, i) {
        var layer = L.tileLayer(t.url, {attribution: t.attribution, maxZoom: 19});
        layers[t.name] = layer;
        if (i === 0) { layer.addTo(map); }
    });
    L.control.layers(layers).addTo(map);
    L.control.scale().addTo(map);

    L.marker([cfg.center.lat, cfg.center.lng]).bindTooltip('Selected location').addTo(map);
    cfg.markers.forEach(function(m) {
        L.circleMarker([m.lat, m.lng], {color: m.color, radius: 9, fillOpacity: 0.8})
            .bindTooltip(m.label).addTo(map);
    });

    map.on('click', function(e) {
        L.popup().setLatLng(e.latlng)
            .setContent('Latitude: ' + e.latlng.lat.toFixed(4) + '<br>Longitude: ' + e.latlng.lng.toFixed(4))
            .openOn(map);
    });

    map.on('dblclick', function(e) {
        var ll = e.latlng.wrap();
        var msg = cfg.prefix + ll.lat.toFixed(6) + ',' + ll.lng.toFixed(6);
        document.title = msg;
        if (cfg.bridge) {
            fetch(cfg.bridge, {method: 'POST', headers: {'Content-Type': 'text/plain'}, body: msg})
                .catch(function() {});
        }
    });

    function watch() {
        fetch(cfg.updates + '?since=' + encodeURIComponent(cfg.id))
            .then(function(r) {
                if (!r.ok) { throw new Error('updates: ' + r.status); }
                return r.json();
            })
            .then(function(u) {
                if (u && u.document_id && u.document_id !== cfg.id) {
                    window.location.reload();
                    return;
                }
                watch();
            })
            .catch(function() { setTimeout(watch, 2000); });
    }
    if (cfg.updates) { watch(); }
})();
</script>
</body>
</html>
`
