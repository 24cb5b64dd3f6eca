package measure

import (
	"github.com/dpup/mapweather/server/internal/lib/geo"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
)

// Marker colors and labels used on the rendered map
const (
	LabelA = "Marker A"
	LabelB = "Marker B"
	ColorA = "green"
	ColorB = "red"
)

// State is one of Empty, HasA or HasBoth. It is the only record of which
// markers are placed.
type State interface {
	// Name is a stable identifier: "empty", "has_a" or "has_both".
	Name() string
	// Markers returns the secondary markers to draw for this state.
	Markers() []mapdoc.Marker

	sealed()
}

// Empty has no markers placed
type Empty struct{}

// HasA has marker A placed and is waiting for B
type HasA struct {
	A geo.Point
}

// HasBoth has both markers placed along with their measurement
type HasBoth struct {
	A      geo.Point
	B      geo.Point
	Result geo.DistanceResult
}

func (Empty) Name() string   { return "empty" }
func (HasA) Name() string    { return "has_a" }
func (HasBoth) Name() string { return "has_both" }

func (Empty) Markers() []mapdoc.Marker { return nil }

func (s HasA) Markers() []mapdoc.Marker {
	return []mapdoc.Marker{{Point: s.A, Label: LabelA, Color: ColorA}}
}

func (s HasBoth) Markers() []mapdoc.Marker {
	return []mapdoc.Marker{
		{Point: s.A, Label: LabelA, Color: ColorA},
		{Point: s.B, Label: LabelB, Color: ColorB},
	}
}

func (Empty) sealed()   {}
func (HasA) sealed()    {}
func (HasBoth) sealed() {}
