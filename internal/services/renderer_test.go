package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/mapweather/server/internal/lib/geo"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
)

type memoryWriter struct {
	mu   sync.Mutex
	docs []*mapdoc.Document
	err  error
}

func (w *memoryWriter) WriteDocument(doc *mapdoc.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.docs = append(w.docs, doc)
	return nil
}

func (w *memoryWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.docs)
}

func (w *memoryWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

type rebuildRecord struct {
	result  string
	version uint64
}

type recordingRebuilds struct {
	mu      sync.Mutex
	records []rebuildRecord
}

func (r *recordingRebuilds) RecordRebuild(result string, _ time.Duration, version uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rebuildRecord{result, version})
}

var (
	kyiv   = geo.Point{Latitude: 50.4501, Longitude: 30.5234}
	pointA = geo.Point{Latitude: 50.1, Longitude: 30.1}
	pointB = geo.Point{Latitude: 50.2, Longitude: 30.2}
)

func newTestRenderer() (*MapRenderer, *memoryWriter, *recordingRebuilds) {
	writer := &memoryWriter{}
	rec := &recordingRebuilds{}
	builder := mapdoc.NewBuilder(mapdoc.Options{BridgeEndpoint: RouteBridge, UpdatesEndpoint: RouteMapUpdates})
	return NewMapRenderer(builder, writer, kyiv, 6, rec), writer, rec
}

func TestMapRenderer_InitialDocument(t *testing.T) {
	r, writer, rec := newTestRenderer()

	_, ok := r.Current()
	assert.False(t, ok)

	require.NoError(t, r.RenderNow(logging.EnsureLogger(context.Background())))
	pub, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(1), pub.Version)
	assert.Equal(t, kyiv, pub.Document.Center)
	assert.Empty(t, pub.Document.Markers)
	assert.Equal(t, 1, writer.count())
	assert.Equal(t, []rebuildRecord{{RebuildOK, 1}}, rec.records)

	// Nothing new requested
	require.NoError(t, r.RenderNow(logging.EnsureLogger(context.Background())))
	assert.Equal(t, 1, writer.count())
}

func TestMapRenderer_LatestIntentWins(t *testing.T) {
	r, writer, _ := newTestRenderer()
	ctx := logging.EnsureLogger(context.Background())
	require.NoError(t, r.RenderNow(ctx))

	r.RequestRebuild([]mapdoc.Marker{{Point: pointA, Label: "Marker A"}})
	r.RequestRebuild([]mapdoc.Marker{{Point: pointA, Label: "Marker A"}, {Point: pointB, Label: "Marker B"}})
	r.RequestRebuild([]mapdoc.Marker{{Point: pointB, Label: "Marker A"}})

	require.NoError(t, r.RenderNow(ctx))
	pub, _ := r.Current()
	assert.Equal(t, uint64(2), pub.Version)
	require.Len(t, pub.Document.Markers, 1)
	assert.Equal(t, pointB, pub.Document.Markers[0].Point)
	assert.Equal(t, 2, writer.count(), "intermediate intents are never built")
}

func TestMapRenderer_FailureKeepsPreviousDocument(t *testing.T) {
	r, writer, rec := newTestRenderer()
	ctx := logging.EnsureLogger(context.Background())
	require.NoError(t, r.RenderNow(ctx))
	before, _ := r.Current()

	writer.fail(errors.New("disk full"))
	r.RequestRebuild([]mapdoc.Marker{{Point: pointA}})
	err := r.RenderNow(ctx)

	var renderErr *mapdoc.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "persist", renderErr.Stage)

	after, _ := r.Current()
	assert.Equal(t, before.Document.ID, after.Document.ID)
	assert.Equal(t, RebuildError, rec.records[len(rec.records)-1].result)

	// The intent is retried on the next pass
	writer.fail(nil)
	require.NoError(t, r.RenderNow(ctx))
	after, _ = r.Current()
	assert.Equal(t, uint64(2), after.Version)
	assert.Len(t, after.Document.Markers, 1)
}

func TestMapRenderer_SetViewKeepsMarkers(t *testing.T) {
	r, _, _ := newTestRenderer()
	ctx := logging.EnsureLogger(context.Background())

	r.RequestRebuild([]mapdoc.Marker{{Point: pointA}})
	require.Error(t, r.SetView(geo.Point{Latitude: 95}, 10))
	require.ErrorIs(t, r.SetView(pointB, 25), mapdoc.ErrInvalidZoom)

	require.NoError(t, r.SetView(pointB, 12))
	require.NoError(t, r.RenderNow(ctx))

	pub, _ := r.Current()
	assert.Equal(t, pointB, pub.Document.Center)
	assert.Equal(t, 12, pub.Document.Zoom)
	assert.Len(t, pub.Document.Markers, 1)

	center, zoom := r.View()
	assert.Equal(t, pointB, center)
	assert.Equal(t, 12, zoom)
}

func TestMapRenderer_RunAndWaitForUpdate(t *testing.T) {
	r, _, _ := newTestRenderer()
	ctx, cancel := context.WithCancel(logging.EnsureLogger(context.Background()))
	defer cancel()

	require.NoError(t, r.RenderNow(ctx))
	first, _ := r.Current()
	go r.Run(ctx)

	r.RequestRebuild([]mapdoc.Marker{{Point: pointA}})

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	pub, err := r.WaitForUpdate(waitCtx, first.Document.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Document.ID, pub.Document.ID)
	assert.Len(t, pub.Document.Markers, 1)
}

func TestMapRenderer_WaitForUpdateTimesOut(t *testing.T) {
	r, _, _ := newTestRenderer()
	require.NoError(t, r.RenderNow(logging.EnsureLogger(context.Background())))
	cur, _ := r.Current()

	ctx, cancel := context.WithTimeout(logging.EnsureLogger(context.Background()), 20*time.Millisecond)
	defer cancel()
	pub, err := r.WaitForUpdate(ctx, cur.Document.ID)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, cur.Document.ID, pub.Document.ID)

	// Unknown ids return immediately
	pub, err = r.WaitForUpdate(logging.EnsureLogger(context.Background()), "stale-id")
	require.NoError(t, err)
	assert.Equal(t, cur.Document.ID, pub.Document.ID)
}

type panickingWriter struct {
	memoryWriter
	mu     sync.Mutex
	panics int
}

func (w *panickingWriter) WriteDocument(doc *mapdoc.Document) error {
	w.mu.Lock()
	if w.panics > 0 {
		w.panics--
		w.mu.Unlock()
		panic("disk on fire")
	}
	w.mu.Unlock()
	return w.memoryWriter.WriteDocument(doc)
}

func TestMapRenderer_RunSurvivesPanickingWriter(t *testing.T) {
	writer := &panickingWriter{}
	rec := &recordingRebuilds{}
	builder := mapdoc.NewBuilder(mapdoc.Options{BridgeEndpoint: RouteBridge, UpdatesEndpoint: RouteMapUpdates})
	r := NewMapRenderer(builder, writer, kyiv, 6, rec)

	ctx, cancel := context.WithCancel(logging.EnsureLogger(context.Background()))
	defer cancel()
	require.NoError(t, r.RenderNow(ctx))
	first, _ := r.Current()

	writer.mu.Lock()
	writer.panics = 1
	writer.mu.Unlock()
	go r.Run(ctx)

	r.RequestRebuild([]mapdoc.Marker{{Point: pointA}})
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, record := range rec.records {
			if record.result == RebuildError {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)

	// The loop is still alive and publishes the next request
	r.RequestRebuild([]mapdoc.Marker{{Point: pointA}, {Point: pointB}})
	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	pub, err := r.WaitForUpdate(waitCtx, first.Document.ID)
	require.NoError(t, err)
	assert.Len(t, pub.Document.Markers, 2)
	assert.Equal(t, uint64(2), pub.Version)
}
