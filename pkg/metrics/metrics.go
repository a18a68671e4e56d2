// Metrics collection for the AVS host
//
// Provides Prometheus-compatible metrics with support for:
// - Counter: monotonically increasing values
// - Gauge: values that can go up and down
// - Histogram: distribution of observations in buckets
//
// Output is in Prometheus text exposition format for easy scraping.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing metric.
type Counter struct {
	name string
	help string
	bits atomic.Uint64
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add increments the counter by v. Negative values are ignored.
func (c *Counter) Add(v float64) {
	if v < 0 {
		return
	}
	for {
		old := c.bits.Load()
		newVal := math.Float64bits(math.Float64frombits(old) + v)
		if c.bits.CompareAndSwap(old, newVal) {
			return
		}
	}
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	name string
	help string
	bits atomic.Uint64
}

// Set sets the gauge to v.
func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

// Add adds v to the gauge.
func (g *Gauge) Add(v float64) {
	for {
		old := g.bits.Load()
		newVal := math.Float64bits(math.Float64frombits(old) + v)
		if g.bits.CompareAndSwap(old, newVal) {
			return
		}
	}
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Histogram tracks the distribution of observations in buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	buckets []float64 // upper bounds, sorted
	raw     []uint64  // per-bucket counts
	sum     float64
	count   uint64
}

// Observe records one observation.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ub := range h.buckets {
		if v <= ub {
			h.raw[i]++
			break
		}
	}
	h.sum += v
	h.count++
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of all observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Registry holds a set of named metrics.
type Registry struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	order      []string
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// NewCounter registers and returns a counter.
func (r *Registry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	r.order = append(r.order, name)
	return c
}

// NewGauge registers and returns a gauge.
func (r *Registry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	r.order = append(r.order, name)
	return g
}

// NewHistogram registers and returns a histogram with the given bucket
// upper bounds.
func (r *Registry) NewHistogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	sorted := append([]float64{}, buckets...)
	sort.Float64s(sorted)
	h := &Histogram{
		name:    name,
		help:    help,
		buckets: sorted,
		raw:     make([]uint64, len(sorted)),
	}
	r.histograms[name] = h
	r.order = append(r.order, name)
	return h
}

// Render writes all metrics in Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	for _, name := range r.order {
		if c, ok := r.counters[name]; ok {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n%s %v\n", name, c.help, name, name, c.Value())
			continue
		}
		if g, ok := r.gauges[name]; ok {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, g.help, name, name, g.Value())
			continue
		}
		if h, ok := r.histograms[name]; ok {
			h.mu.Lock()
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", name, h.help, name)
			cumulative := uint64(0)
			for i, ub := range h.buckets {
				cumulative += h.raw[i]
				fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", name, formatBound(ub), cumulative)
			}
			fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
			fmt.Fprintf(&sb, "%s_sum %v\n", name, h.sum)
			fmt.Fprintf(&sb, "%s_count %d\n", name, h.count)
			h.mu.Unlock()
		}
	}
	return sb.String()
}

func formatBound(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
}

// Default is the registry used by the package-level metrics below.
var Default = NewRegistry()

// Planner metrics.
var (
	PlanRuns = Default.NewCounter("avs_plan_runs_total",
		"Number of completed planning runs")
	PlanDuration = Default.NewHistogram("avs_plan_duration_seconds",
		"Wall time of planning runs",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10})
	PathSegments = Default.NewGauge("avs_path_segments",
		"Path segments in the most recent plan")
	AccelSegments = Default.NewGauge("avs_acceleration_segments",
		"Acceleration segments in the most recent plan")
	VisRequests = Default.NewCounter("avs_vis_requests_total",
		"HTTP requests served by the visualization server")
	VisStreamedPoints = Default.NewCounter("avs_vis_streamed_points_total",
		"Trajectory points streamed over websocket")
)
