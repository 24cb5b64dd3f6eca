package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/mapweather/server/internal/lib/geo"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
)

var (
	ErrUnknownMessage       = errors.New("unknown channel message")
	ErrMalformedPayload     = errors.New("malformed double-click payload")
	ErrCoordinateOutOfRange = errors.New("double-click coordinate out of range")
)

// ClickEvent is a decoded double-click on the rendered map
type ClickEvent struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Point returns the event as a geographic point
func (e ClickEvent) Point() geo.Point {
	return geo.Point{Latitude: e.Latitude, Longitude: e.Longitude}
}

// Decode parses a raw channel string of the form "MAP_DBLCLICK:<lat>,<lon>"
func Decode(raw string) (ClickEvent, error) {
	payload, ok := strings.CutPrefix(raw, mapdoc.ChannelPrefix)
	if !ok {
		return ClickEvent{}, ErrUnknownMessage
	}

	fields := strings.Split(payload, ",")
	if len(fields) != 2 {
		return ClickEvent{}, fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformedPayload, len(fields))
	}

	for _, f := range fields {
		if !isDecimal(f) {
			return ClickEvent{}, fmt.Errorf("%w: %q is not a decimal number", ErrMalformedPayload, f)
		}
	}

	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return ClickEvent{}, fmt.Errorf("%w: latitude: %v", ErrMalformedPayload, err)
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return ClickEvent{}, fmt.Errorf("%w: longitude: %v", ErrMalformedPayload, err)
	}

	ev := ClickEvent{Latitude: lat, Longitude: lon}
	if err := geo.Validate(ev.Point()); err != nil {
		return ClickEvent{}, fmt.Errorf("%w: %v", ErrCoordinateOutOfRange, err)
	}
	return ev, nil
}

// Recorder receives decode outcomes, typically for metrics
type Recorder interface {
	RecordBridgeMessage(result string)
}

// Result labels passed to Recorder
const (
	ResultAccepted  = "accepted"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultMalformed = "malformed"
)

// Bridge turns channel updates into click events
type Bridge struct {
	dedupe   bool
	recorder Recorder

	mu      sync.Mutex
	lastRaw string
}

// Option configures a Bridge
type Option func(*Bridge)

// WithDedupe drops a payload identical to the immediately preceding one
func WithDedupe(enabled bool) Option {
	return func(b *Bridge) { b.dedupe = enabled }
}

// WithRecorder sets the outcome recorder
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// New creates a Bridge
func New(opts ...Option) *Bridge {
	b := &Bridge{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnChannelUpdate decodes a raw channel value. Malformed payloads are logged
// and reported as no event; they never surface as errors.
func (b *Bridge) OnChannelUpdate(ctx context.Context, raw string) (ClickEvent, bool) {
	ev, err := Decode(raw)
	if err != nil {
		if errors.Is(err, ErrUnknownMessage) {
			// Ordinary title changes and other traffic land here.
			logging.Debugw(ctx, "bridge: ignoring non-click message", "raw", truncate(raw, 64))
			b.record(ResultIgnored)
			return ClickEvent{}, false
		}
		logging.Warnw(ctx, "bridge: discarding malformed payload", "raw", truncate(raw, 64), "error", err)
		b.record(ResultMalformed)
		return ClickEvent{}, false
	}

	b.mu.Lock()
	duplicate := b.dedupe && raw == b.lastRaw
	b.lastRaw = raw
	b.mu.Unlock()

	if duplicate {
		logging.Debugw(ctx, "bridge: dropping repeated payload", "raw", raw)
		b.record(ResultDuplicate)
		return ClickEvent{}, false
	}

	logging.Infow(ctx, "bridge: double-click received", "lat", ev.Latitude, "lng", ev.Longitude)
	b.record(ResultAccepted)
	return ev, true
}

func (b *Bridge) record(result string) {
	if b.recorder != nil {
		b.recorder.RecordBridgeMessage(result)
	}
}

// isDecimal accepts an optional minus sign, digits and at most one point. It keeps
// ParseFloat extensions such as "Inf" or hex floats off the wire.
func isDecimal(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	digits, points := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			points++
		default:
			return false
		}
	}
	return digits > 0 && points <= 1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
