package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	perrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/mapweather/server/internal/lib/geo"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
)

// Rebuild results reported to the RebuildRecorder
const (
	RebuildOK         = "ok"
	RebuildError      = "error"
	RebuildSuperseded = "superseded"
)

// RebuildRecorder observes rebuild outcomes, typically for metrics
type RebuildRecorder interface {
	RecordRebuild(result string, took time.Duration, version uint64)
}

// Published is a document that has been built and persisted
type Published struct {
	Document *mapdoc.Document
	Version  uint64
}

// MapRenderer rebuilds the map document off the caller's goroutine. Requests
// overwrite a single pending intent, so only the latest marker set and view
// are ever rendered; intents that are superseded mid-build are dropped.
type MapRenderer struct {
	builder  *mapdoc.Builder
	writer   mapdoc.DocumentWriter
	recorder RebuildRecorder

	// Serializes builds between Run and RenderNow
	renderMu sync.Mutex

	mu        sync.Mutex
	center    geo.Point
	zoom      int
	markers   []mapdoc.Marker
	requested uint64
	rendered  uint64
	current   *Published
	changed   chan struct{}

	wake chan struct{}
}

// NewMapRenderer creates a renderer with an initial view. recorder may be nil.
func NewMapRenderer(builder *mapdoc.Builder, writer mapdoc.DocumentWriter, center geo.Point, zoom int, recorder RebuildRecorder) *MapRenderer {
	return &MapRenderer{
		builder:   builder,
		writer:    writer,
		recorder:  recorder,
		center:    center,
		zoom:      zoom,
		requested: 1,
		changed:   make(chan struct{}),
		wake:      make(chan struct{}, 1),
	}
}

// RequestRebuild records the latest marker set and returns immediately
func (r *MapRenderer) RequestRebuild(markers []mapdoc.Marker) {
	r.mu.Lock()
	r.markers = append([]mapdoc.Marker(nil), markers...)
	r.requested++
	r.mu.Unlock()
	r.signal()
}

// SetView recenters the map, keeping the current markers
func (r *MapRenderer) SetView(center geo.Point, zoom int) error {
	if err := geo.Validate(center); err != nil {
		return err
	}
	if zoom < mapdoc.MinZoom || zoom > mapdoc.MaxZoom {
		return fmt.Errorf("%w: %d", mapdoc.ErrInvalidZoom, zoom)
	}

	r.mu.Lock()
	r.center = center
	r.zoom = zoom
	r.requested++
	r.mu.Unlock()
	r.signal()
	return nil
}

// View returns the requested center and zoom
func (r *MapRenderer) View() (geo.Point, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.center, r.zoom
}

// Current returns the latest published document, if any
func (r *MapRenderer) Current() (Published, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Published{}, false
	}
	return *r.current, true
}

// WaitForUpdate blocks until a document other than sinceID is published or
// ctx is done. On timeout it returns the current document and ctx.Err().
func (r *MapRenderer) WaitForUpdate(ctx context.Context, sinceID string) (Published, error) {
	for {
		r.mu.Lock()
		cur := r.current
		ch := r.changed
		r.mu.Unlock()

		if cur != nil && cur.Document.ID != sinceID {
			return *cur, nil
		}

		select {
		case <-ctx.Done():
			if cur == nil {
				return Published{}, ctx.Err()
			}
			return *cur, ctx.Err()
		case <-ch:
		}
	}
}

// Run processes rebuild requests until ctx is cancelled
func (r *MapRenderer) Run(ctx context.Context) {
	logging.Infow(ctx, "Map renderer started")
	for {
		select {
		case <-ctx.Done():
			logging.Infow(ctx, "Map renderer stopping due to context cancellation")
			return
		case <-r.wake:
			r.renderRecovered(ctx)
		}
	}
}

// renderRecovered runs one rebuild. A panic is logged and counted as a failed
// rebuild so the loop keeps serving later requests.
func (r *MapRenderer) renderRecovered(ctx context.Context) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err, _ := perrors.ParseStack(debug.Stack())
			logging.Errorw(ctx, "Map renderer: recovered from panic",
				"error", rec, "error.stack_trace", err.MinimalStack(3, 5))
			r.record(RebuildError, time.Since(start), 0)
		}
	}()

	// Failures are logged and counted inside RenderNow
	_ = r.RenderNow(ctx)
}

// RenderNow builds and publishes the latest requested state synchronously.
// It is a no-op when that state has already been published.
func (r *MapRenderer) RenderNow(ctx context.Context) error {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	seq := r.requested
	if seq == r.rendered {
		r.mu.Unlock()
		return nil
	}
	center, zoom := r.center, r.zoom
	markers := append([]mapdoc.Marker(nil), r.markers...)
	r.mu.Unlock()

	start := time.Now()
	doc, err := r.builder.Build(center, zoom, markers)
	if err != nil {
		return r.fail(ctx, start, "build", err)
	}

	if r.superseded(seq) {
		logging.Debugw(ctx, "Map renderer: dropping superseded build", "seq", seq)
		r.record(RebuildSuperseded, time.Since(start), 0)
		r.signal()
		return nil
	}

	if err := r.writer.WriteDocument(doc); err != nil {
		return r.fail(ctx, start, "persist", err)
	}

	r.mu.Lock()
	var version uint64 = 1
	if r.current != nil {
		version = r.current.Version + 1
	}
	r.current = &Published{Document: doc, Version: version}
	r.rendered = seq
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()

	logging.Infow(ctx, "Map document published",
		"version", version, "document_id", doc.ID, "markers", len(markers))
	r.record(RebuildOK, time.Since(start), version)
	return nil
}

func (r *MapRenderer) fail(ctx context.Context, start time.Time, stage string, err error) error {
	var renderErr *mapdoc.RenderError
	if !errors.As(err, &renderErr) {
		err = &mapdoc.RenderError{Stage: stage, Err: err}
	}
	logging.Errorw(ctx, "Map rebuild failed; keeping previous document", "error", err)
	r.record(RebuildError, time.Since(start), 0)
	return err
}

func (r *MapRenderer) superseded(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requested != seq
}

func (r *MapRenderer) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *MapRenderer) record(result string, took time.Duration, version uint64) {
	if r.recorder != nil {
		r.recorder.RecordRebuild(result, took, version)
	}
}
