package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles Prometheus metrics for the map bridge, the measurement
// state machine and the map renderer.
type Collector struct {
	gatherer prometheus.Gatherer

	BridgeMessages  *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Rebuilds        *prometheus.CounterVec
	RebuildDuration prometheus.Histogram
	DocumentVersion prometheus.Gauge
}

// NewCollector registers metrics against the provided registerer, defaulting
// to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	bridge, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_messages_total",
		Help: "Channel messages seen by the map bridge, labeled by outcome.",
	}, []string{"result"}), "bridge_messages_total")
	if err != nil {
		return nil, err
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "measurement_transitions_total",
		Help: "Measurement state transitions, labeled by the state entered.",
	}, []string{"to"}), "measurement_transitions_total")
	if err != nil {
		return nil, err
	}

	rebuilds, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "map_rebuilds_total",
		Help: "Map document rebuilds, labeled by result.",
	}, []string{"result"}), "map_rebuilds_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "map_rebuild_duration_seconds",
		Help:    "Time to build and persist a map document.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "map_rebuild_duration_seconds")
	if err != nil {
		return nil, err
	}

	version, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "map_document_version",
		Help: "Version of the currently published map document.",
	}), "map_document_version")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		BridgeMessages:  bridge,
		Transitions:     transitions,
		Rebuilds:        rebuilds,
		RebuildDuration: duration,
		DocumentVersion: version,
	}, nil
}

// RecordBridgeMessage counts a bridge decode outcome
func (c *Collector) RecordBridgeMessage(result string) {
	if c == nil || c.BridgeMessages == nil {
		return
	}
	c.BridgeMessages.WithLabelValues(result).Inc()
}

// RecordTransition counts a state machine transition
func (c *Collector) RecordTransition(to string) {
	if c == nil || c.Transitions == nil {
		return
	}
	c.Transitions.WithLabelValues(to).Inc()
}

// RecordRebuild counts a rebuild and, on success, the published version
func (c *Collector) RecordRebuild(result string, took time.Duration, version uint64) {
	if c == nil {
		return
	}
	if c.Rebuilds != nil {
		c.Rebuilds.WithLabelValues(result).Inc()
	}
	if c.RebuildDuration != nil {
		c.RebuildDuration.Observe(took.Seconds())
	}
	if result == "ok" && c.DocumentVersion != nil {
		c.DocumentVersion.Set(float64(version))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
