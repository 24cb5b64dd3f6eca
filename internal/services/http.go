package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/mapweather/server/internal/clients/geocode"
	"github.com/dpup/mapweather/server/internal/lib/assistant"
	"github.com/dpup/mapweather/server/internal/lib/mapdoc"
)

// HTTP routes served next to the prefab gateway
const (
	RouteHome          = "/"
	RouteBridge        = "/api/v1/bridge"
	RouteMapUpdates    = "/api/v1/map/updates"
	RouteMeasurement   = "/api/v1/measurement"
	RouteKML           = "/api/v1/measurement.kml"
	RouteGeoJSON       = "/api/v1/measurement.geojson"
	RouteWeather       = "/api/v1/weather"
	RouteWeatherReport = "/api/v1/weather/report"
	RouteSearch        = "/api/v1/search"
	RouteAssistant     = "/api/v1/assistant"
	RouteMetrics       = "/metrics"
)

// Bridge payloads are short; anything larger is not a click
const maxBridgeBody = 1 << 10

// Handlers serves the HTTP surface of the map host
type Handlers struct {
	Host           *MapHost
	Renderer       *MapRenderer
	Board          *StatusBoard
	WeatherService *WeatherService
	SearchService  *SearchService
	Assistant      assistant.Assistant
	UpdateTimeout  time.Duration
}

// MapUpdate answers the long-poll on the map document
type MapUpdate struct {
	Version    uint64 `json:"version"`
	DocumentID string `json:"document_id"`
}

// Home serves the current map document
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != RouteHome {
		http.NotFound(w, r)
		return
	}
	pub, ok := h.Renderer.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "map is still rendering")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(pub.Document.HTML); err != nil {
		logging.Errorw(r.Context(), "Failed to write map document", "error", err)
	}
}

// Bridge accepts a raw channel value from the rendered page
func (h *Handlers) Bridge(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBridgeBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	// Passed through untouched; the bridge rejects padded payloads
	raw := string(body)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "empty payload")
		return
	}

	if err := h.Host.Submit(raw); err != nil {
		logging.Warnw(r.Context(), "Dropping bridge payload", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// MapUpdates long-polls until a document other than ?since= is published
func (h *Handlers) MapUpdates(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.UpdateTimeout)
	defer cancel()

	pub, err := h.Renderer.WaitForUpdate(ctx, r.URL.Query().Get("since"))
	if pub.Document == nil {
		if err == nil {
			err = errors.New("no document")
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MapUpdate{Version: pub.Version, DocumentID: pub.Document.ID})
}

// Measurement returns the current measurement snapshot
func (h *Handlers) Measurement(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.Board.Snapshot())
}

// MeasurementKML exports the markers and measured path as KML
func (h *Handlers) MeasurementKML(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap := h.Board.Snapshot()

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="measurement.kml"`)
	if err := mapdoc.WriteKML(w, "Measurement", snap.Markers); err != nil {
		logging.Errorw(r.Context(), "KML export failed", "error", err)
	}
}

// MeasurementGeoJSON exports the markers and measured path as GeoJSON
func (h *Handlers) MeasurementGeoJSON(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap := h.Board.Snapshot()

	var props map[string]interface{}
	if snap.Result != nil {
		props = map[string]interface{}{
			"meters":         snap.Result.Meters,
			"walk_time_text": snap.Result.WalkTimeText,
			"car_time_text":  snap.Result.CarTimeText,
		}
	}
	data, err := mapdoc.GeoJSON(snap.Markers, props)
	if err != nil {
		logging.Errorw(r.Context(), "GeoJSON export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// Weather returns weather at the current map center
func (h *Handlers) Weather(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	center, _ := h.Renderer.View()

	report, err := h.WeatherService.GetWeather(r.Context(), center)
	if err != nil {
		logging.Errorw(r.Context(), "Weather lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "weather unavailable")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ExportWeatherReport downloads the weather at the map center as ?format=txt|html
func (h *Handlers) ExportWeatherReport(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = ReportFormatText
	}
	contentType, err := ReportContentType(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	center, _ := h.Renderer.View()

	report, err := h.WeatherService.GetWeather(r.Context(), center)
	if err != nil {
		logging.Errorw(r.Context(), "Weather lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "weather unavailable")
		return
	}

	var buf bytes.Buffer
	if err := WriteWeatherReport(&buf, format, report); err != nil {
		logging.Errorw(r.Context(), "Weather report rendering failed", "error", err)
		writeError(w, http.StatusInternalServerError, "report unavailable")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="weather_report.%s"`, format))
	_, _ = w.Write(buf.Bytes())
}

// SearchPlace geocodes ?q= and recenters the map
func (h *Handlers) SearchPlace(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	result, err := h.SearchService.Search(r.Context(), r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, geocode.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, geocode.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		logging.Warnw(r.Context(), "Search failed", "error", err)
		writeError(w, http.StatusBadGateway, "search failed")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Ask returns a short description of ?q=
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	answer, err := h.Assistant.Describe(r.Context(), r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, assistant.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		logging.Warnw(r.Context(), "Assistant failed", "error", err)
		writeError(w, http.StatusBadGateway, "assistant unavailable")
	default:
		writeJSON(w, http.StatusOK, answer)
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s required", method))
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
