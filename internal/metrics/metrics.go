// Package metrics collects counters, gauges and histograms for imbridge and
// exposes them in the Prometheus text format or as JSON.
//
// Counters and gauges are atomics. Histograms take a mutex per observation,
// which is fine at key-event rates.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Labels are constant label pairs attached to a metric.
type Labels map[string]string

// String formats the labels as a Prometheus label set, keys sorted.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	parts := make([]string, 0, len(l))
	for _, k := range sortedKeys(l) {
		parts = append(parts, fmt.Sprintf("%s=%q", k, l[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// with returns the label set with one extra pair, for histogram buckets.
func (l Labels) with(key, value string) string {
	merged := make(Labels, len(l)+1)
	for k, v := range l {
		merged[k] = v
	}
	merged[key] = value
	return merged.String()
}

type desc struct {
	name   string
	help   string
	labels Labels
}

func (d desc) header(w io.Writer, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", d.name, d.help, d.name, kind)
}

// Counter only goes up.
type Counter struct {
	desc
	value atomic.Uint64
}

// Inc adds one.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds v.
func (c *Counter) Add(v uint64) { c.value.Add(v) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	desc
	value atomic.Int64
}

// Set replaces the value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Inc adds one.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec subtracts one.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Value returns the current value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram counts observations into fixed upper-bound buckets.
type Histogram struct {
	desc
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last one is +Inf
	sum    float64
	count  uint64
}

// DefaultBuckets are used when a histogram is registered without buckets.
var DefaultBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// LatencyBuckets suit round trips to an input method, in seconds.
var LatencyBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
}

func newHistogram(d desc, buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	return &Histogram{desc: d, bounds: bounds, counts: make([]uint64, len(bounds)+1)}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.count++
	h.mu.Unlock()
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) { h.Observe(d.Seconds()) }

// Timer starts timing one observation.
func (h *Histogram) Timer() *Timer { return &Timer{h: h, start: time.Now()} }

// Sum returns the sum of all observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// cumulative returns the bucket counts as Prometheus expects them, each
// including every smaller bucket. The caller holds h.mu.
func (h *Histogram) cumulative() []uint64 {
	out := make([]uint64, len(h.counts))
	var total uint64
	for i, n := range h.counts {
		total += n
		out[i] = total
	}
	return out
}

// Timer measures the time between Histogram.Timer and Stop. A nil Timer
// records nothing.
type Timer struct {
	h     *Histogram
	start time.Time
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	if t == nil {
		return 0
	}
	d := time.Since(t.start)
	t.h.ObserveDuration(d)
	return d
}

// Registry owns a set of metrics sharing a name prefix.
type Registry struct {
	prefix string

	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry returns an empty registry. Metric names are prefixed with the
// non-empty parts of namespace and subsystem joined by underscores.
func NewRegistry(namespace, subsystem string) *Registry {
	var parts []string
	for _, p := range []string{namespace, subsystem} {
		if p != "" {
			parts = append(parts, p+"_")
		}
	}
	return &Registry{
		prefix:     strings.Join(parts, ""),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// RegisterCounter returns the counter called name, creating it if needed.
func (r *Registry) RegisterCounter(name, help string, labels Labels) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + name
	if c, ok := r.counters[full]; ok {
		return c
	}
	c := &Counter{desc: desc{full, help, labels}}
	r.counters[full] = c
	return c
}

// RegisterGauge returns the gauge called name, creating it if needed.
func (r *Registry) RegisterGauge(name, help string, labels Labels) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + name
	if g, ok := r.gauges[full]; ok {
		return g
	}
	g := &Gauge{desc: desc{full, help, labels}}
	r.gauges[full] = g
	return g
}

// RegisterHistogram returns the histogram called name, creating it with the
// given buckets if needed.
func (r *Registry) RegisterHistogram(name, help string, labels Labels, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + name
	if h, ok := r.histograms[full]; ok {
		return h
	}
	h := newHistogram(desc{full, help, labels}, buckets)
	r.histograms[full] = h
	return h
}

// WritePrometheus writes every metric in the Prometheus text format,
// sorted by name within each kind.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.header(w, "counter")
		fmt.Fprintf(w, "%s%s %d\n", c.name, c.labels, c.Value())
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.header(w, "gauge")
		fmt.Fprintf(w, "%s%s %d\n", g.name, g.labels, g.Value())
	}
	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		h.header(w, "histogram")
		h.mu.Lock()
		cum := h.cumulative()
		for i, bound := range h.bounds {
			fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, h.labels.with("le", fmt.Sprintf("%.6f", bound)), cum[i])
		}
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, h.labels.with("le", "+Inf"), cum[len(h.bounds)])
		fmt.Fprintf(w, "%s_sum%s %f\n", h.name, h.labels, h.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", h.name, h.labels, h.count)
		h.mu.Unlock()
	}
	return nil
}

// WriteJSON writes every metric as one indented JSON object keyed by name.
func (r *Registry) WriteJSON(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.counters)+len(r.gauges)+len(r.histograms))
	for name, c := range r.counters {
		out[name] = map[string]any{"type": "counter", "help": c.help, "labels": c.labels, "value": c.Value()}
	}
	for name, g := range r.gauges {
		out[name] = map[string]any{"type": "gauge", "help": g.help, "labels": g.labels, "value": g.Value()}
	}
	for name, h := range r.histograms {
		h.mu.Lock()
		cum := h.cumulative()
		buckets := make(map[string]uint64, len(cum))
		for i, bound := range h.bounds {
			buckets[fmt.Sprintf("%.6f", bound)] = cum[i]
		}
		buckets["+Inf"] = cum[len(h.bounds)]
		out[name] = map[string]any{
			"type":    "histogram",
			"help":    h.help,
			"labels":  h.labels,
			"buckets": buckets,
			"sum":     h.sum,
			"count":   h.count,
		}
		h.mu.Unlock()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Snapshot flattens the registry into name/value pairs, histograms as
// name_count and name_sum. It is meant for log lines.
func (r *Registry) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]float64)
	for name, c := range r.counters {
		snap[name] = float64(c.Value())
	}
	for name, g := range r.gauges {
		snap[name] = float64(g.Value())
	}
	for name, h := range r.histograms {
		snap[name+"_count"] = float64(h.Count())
		snap[name+"_sum"] = h.Sum()
	}
	return snap
}

// HTTPHandler serves the registry as JSON when the client asks for it and
// as Prometheus text otherwise.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			_ = r.WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_ = r.WritePrometheus(w)
	})
}

var defaultRegistry = NewRegistry("imbridge", "")

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
