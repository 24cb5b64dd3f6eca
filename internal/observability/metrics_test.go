package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.RecordBridgeMessage("accepted")
	c.RecordBridgeMessage("accepted")
	c.RecordBridgeMessage("malformed")
	c.RecordTransition("has_a")
	c.RecordRebuild("ok", 5*time.Millisecond, 7)
	c.RecordRebuild("error", time.Millisecond, 8)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.BridgeMessages.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BridgeMessages.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transitions.WithLabelValues("has_a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rebuilds.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.DocumentVersion), "failed rebuilds keep the published version")
}

func TestNewCollectorIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.RecordTransition("has_both")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Transitions.WithLabelValues("has_both")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordBridgeMessage("accepted")
	c.RecordTransition("has_a")
	c.RecordRebuild("ok", time.Millisecond, 1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.RecordBridgeMessage("ignored")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `bridge_messages_total{result="ignored"} 1`))
}
