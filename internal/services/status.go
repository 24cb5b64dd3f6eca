package services

import (
	"context"
	"sync"
	"time"

	"github.com/dpup/mapweather/server/internal/lib/geo"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
	"github.com/dpup/mapweather/server/internal/lib/measure"
)

// StatusIdle is shown before the first double-click
const StatusIdle = "Double-click the map to set Marker A"

// MeasurementSnapshot is the read-only view of the measurement state
type MeasurementSnapshot struct {
	Seq         uint64              `json:"seq"`
	State       string              `json:"state"`
	MarkerA     *geo.Point          `json:"marker_a,omitempty"`
	MarkerB     *geo.Point          `json:"marker_b,omitempty"`
	Status      string              `json:"status"`
	Result      *geo.DistanceResult `json:"result,omitempty"`
	EncodedPath string              `json:"encoded_path,omitempty"`
	Markers     []mapdoc.Marker     `json:"markers"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// StatusBoard publishes machine updates to concurrent readers
type StatusBoard struct {
	mu       sync.RWMutex
	snapshot MeasurementSnapshot
}

// NewStatusBoard creates a board in the idle state
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{
		snapshot: MeasurementSnapshot{
			State:   measure.Empty{}.Name(),
			Status:  StatusIdle,
			Markers: []mapdoc.Marker{},
		},
	}
}

// PublishStatus implements measure.StatusSink
func (b *StatusBoard) PublishStatus(_ context.Context, u measure.Update) {
	snap := MeasurementSnapshot{
		Seq:       u.Seq,
		State:     u.State.Name(),
		Status:    u.Status,
		Markers:   u.State.Markers(),
		UpdatedAt: time.Now().UTC(),
	}
	if snap.Markers == nil {
		snap.Markers = []mapdoc.Marker{}
	}

	switch s := u.State.(type) {
	case measure.HasA:
		a := s.A
		snap.MarkerA = &a
	case measure.HasBoth:
		a, bp, r := s.A, s.B, s.Result
		snap.MarkerA = &a
		snap.MarkerB = &bp
		snap.Result = &r
		snap.EncodedPath = geo.EncodePath([]geo.Point{a, bp})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// Updates come from a single loop, but never let an older one win
	if snap.Seq < b.snapshot.Seq {
		return
	}
	b.snapshot = snap
}

// Snapshot returns the latest published state
func (b *StatusBoard) Snapshot() MeasurementSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := b.snapshot
	snap.Markers = append([]mapdoc.Marker{}, b.snapshot.Markers...)
	return snap
}
