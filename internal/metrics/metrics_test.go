package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIMMetricsNilReceiver(t *testing.T) {
	var m *IMMetrics
	assert.NotPanics(t, func() {
		m.Lookup()
		m.LookupOverflow()
		m.ProtocolViolation()
		m.Commit()
		m.PreeditDraw()
		m.CaretUpdate()
		m.SessionCreated()
		m.SessionFailed()
		m.SessionEnabled()
		m.SessionDisabled()
		m.LookupTimer().Stop()
	})
	assert.Nil(t, m.Registry())
	assert.Nil(t, m.LookupTimer())
}

func TestIMMetricsCounts(t *testing.T) {
	reg := NewRegistry("test", "")
	m := NewIMMetrics(reg)

	m.Lookup()
	m.Lookup()
	m.LookupOverflow()
	m.Commit()
	m.SessionEnabled()
	m.SessionEnabled()
	m.SessionDisabled()

	assert.Equal(t, uint64(2), m.LookupsTotal.Value())
	assert.Equal(t, uint64(1), m.LookupOverflowsTotal.Value())
	assert.Equal(t, uint64(1), m.CommitsTotal.Value())
	assert.Equal(t, int64(1), m.EnabledSessions.Value())
	assert.Same(t, m.LookupsTotal, reg.RegisterCounter("lookups_total", "", nil))
}

func TestHistogramBuckets(t *testing.T) {
	h := NewRegistry("", "").RegisterHistogram("h", "help", nil, []float64{5, 1, 2})
	h.Observe(0.5)
	h.Observe(1)
	h.Observe(3)
	h.Observe(10)

	assert.Equal(t, uint64(4), h.Count())
	assert.InDelta(t, 14.5, h.Sum(), 1e-9)
	assert.Equal(t, []uint64{2, 0, 1, 1}, h.counts)
}

func TestWritePrometheus(t *testing.T) {
	reg := NewRegistry("imbridge", "")
	reg.RegisterCounter("b_total", "second", nil).Add(3)
	reg.RegisterCounter("a_total", "first", Labels{"window": "7"}).Inc()
	h := reg.RegisterHistogram("lat", "latency", nil, []float64{1, 2})
	h.Observe(0.5)
	h.Observe(1.5)

	var buf bytes.Buffer
	require.NoError(t, reg.WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, `imbridge_a_total{window="7"} 1`)
	assert.Contains(t, out, "imbridge_b_total 3")
	assert.Less(t, strings.Index(out, "imbridge_a_total"), strings.Index(out, "imbridge_b_total"))
	assert.Contains(t, out, `imbridge_lat_bucket{le="1.000000"} 1`)
	assert.Contains(t, out, `imbridge_lat_bucket{le="2.000000"} 2`)
	assert.Contains(t, out, `imbridge_lat_bucket{le="+Inf"} 2`)
}

func TestWriteJSON(t *testing.T) {
	reg := NewRegistry("", "")
	reg.RegisterGauge("enabled", "enabled sessions", nil).Set(2)

	var buf bytes.Buffer
	require.NoError(t, reg.WriteJSON(&buf))

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "gauge", decoded["enabled"]["type"])
	assert.EqualValues(t, 2, decoded["enabled"]["value"])
}

func TestHistogramTimer(t *testing.T) {
	h := NewRegistry("", "").RegisterHistogram("lat", "latency", nil, LatencyBuckets)
	timer := h.Timer()
	time.Sleep(time.Millisecond)
	d := timer.Stop()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Equal(t, uint64(1), h.Count())
	assert.InDelta(t, d.Seconds(), h.Sum(), 1e-9)
}

func TestSnapshot(t *testing.T) {
	reg := NewRegistry("imbridge", "")
	m := NewIMMetrics(reg)
	m.Lookup()
	m.SessionEnabled()
	m.LookupLatency.Observe(0.5)
	m.LookupLatency.Observe(1.5)

	snap := reg.Snapshot()
	assert.Equal(t, 1.0, snap["imbridge_lookups_total"])
	assert.Equal(t, 1.0, snap["imbridge_enabled_sessions"])
	assert.Equal(t, 2.0, snap["imbridge_lookup_duration_seconds_count"])
	assert.InDelta(t, 2.0, snap["imbridge_lookup_duration_seconds_sum"], 1e-9)
	assert.Equal(t, 0.0, snap["imbridge_commits_total"])
}

func TestHTTPHandler(t *testing.T) {
	reg := NewRegistry("imbridge", "")
	reg.RegisterCounter("lookups_total", "lookups", nil).Inc()
	h := reg.HTTPHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "imbridge_lookups_total 1")

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"imbridge_lookups_total"`)
}
