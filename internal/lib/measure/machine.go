package measure

import (
	"context"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/mapweather/server/internal/lib/geo"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
)

// Default travel speeds in km/h
const (
	DefaultWalkSpeedKmh  = 5.0
	DefaultDriveSpeedKmh = 50.0
)

// Speeds used for travel time estimates
type Speeds struct {
	WalkKmh  float64
	DriveKmh float64
}

// DefaultSpeeds returns walking at 5 km/h and driving at 50 km/h
func DefaultSpeeds() Speeds {
	return Speeds{WalkKmh: DefaultWalkSpeedKmh, DriveKmh: DefaultDriveSpeedKmh}
}

// Update describes the outcome of one transition
type Update struct {
	Seq    uint64
	State  State
	Status string
}

// StatusSink receives human-readable status after each transition
type StatusSink interface {
	PublishStatus(ctx context.Context, u Update)
}

// RebuildRequester accepts map rebuild requests. Implementations must not
// block; a newer request supersedes any pending one.
type RebuildRequester interface {
	RequestRebuild(markers []mapdoc.Marker)
}

// TransitionRecorder observes transitions, typically for metrics
type TransitionRecorder interface {
	RecordTransition(to string)
}

// Machine owns the two marker slots. It is not safe for concurrent use; the
// host event loop is its only caller.
type Machine struct {
	state     State
	speeds    Speeds
	sink      StatusSink
	rebuilder RebuildRequester
	recorder  TransitionRecorder
	seq       uint64
}

// Option configures a Machine
type Option func(*Machine)

// WithTransitionRecorder sets the transition recorder
func WithTransitionRecorder(r TransitionRecorder) Option {
	return func(m *Machine) { m.recorder = r }
}

// NewMachine creates a Machine in the Empty state. sink and rebuilder may be nil.
func NewMachine(speeds Speeds, sink StatusSink, rebuilder RebuildRequester, opts ...Option) *Machine {
	m := &Machine{
		state:     Empty{},
		speeds:    speeds,
		sink:      sink,
		rebuilder: rebuilder,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Speeds returns the configured travel speeds
func (m *Machine) Speeds() Speeds {
	return m.speeds
}

// Apply advances the machine with a double-click at c, publishes the status
// and requests a rebuild for the new marker set.
func (m *Machine) Apply(ctx context.Context, c geo.Point) Update {
	next, status := Next(m.state, c, m.speeds)
	m.state = next
	m.seq++

	u := Update{Seq: m.seq, State: next, Status: status}

	if both, ok := next.(HasBoth); ok {
		logging.Infow(ctx, "measure: distance computed",
			"meters", both.Result.Meters, "km", both.Result.Kilometers)
	} else {
		logging.Debugw(ctx, "measure: transition", "state", next.Name())
	}

	if m.recorder != nil {
		m.recorder.RecordTransition(next.Name())
	}
	if m.sink != nil {
		m.sink.PublishStatus(ctx, u)
	}
	if m.rebuilder != nil {
		m.rebuilder.RequestRebuild(next.Markers())
	}
	return u
}

// Next is the transition function:
//
//	Empty      + c -> HasA(c)
//	HasA(a)    + c -> HasBoth(a, c)
//	HasBoth(.) + c -> HasA(c)
func Next(s State, c geo.Point, speeds Speeds) (State, string) {
	switch cur := s.(type) {
	case HasA:
		result := geo.Measure(cur.A, c, speeds.WalkKmh, speeds.DriveKmh)
		return HasBoth{A: cur.A, B: c, Result: result}, Report(cur.A, c, result)
	case HasBoth:
		return HasA{A: c}, StatusMarkerBCleared
	default:
		return HasA{A: c}, StatusMarkerASet
	}
}
