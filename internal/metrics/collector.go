// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Op          string
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the run statistics at a point in time.
type Snapshot struct {
	UptimeSeconds     float64
	ResourcesOK       int64
	ResourcesFailed   int64
	ResourcesExcluded int64
	Operations        []OperationSnapshot // sorted by op name
}

// Operation names for the collector.
const (
	OpFetch             = "fetch"
	OpDecompress        = "decompress"
	OpConvertOntology   = "convert_ontology"
	OpConvertAnnotation = "convert_annotation"
	OpWrite             = "write"
)

// Resource outcomes.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusExcluded = "excluded"
)

// Collector aggregates in-memory runtime statistics and mirrors them into a
// private Prometheus registry. All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	resources map[string]int64

	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gafscrape",
		Name:      "operation_duration_seconds",
		Help:      "Duration of pipeline operations.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"op"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gafscrape",
		Name:      "resources_total",
		Help:      "Resources by outcome.",
	}, []string{"status"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(durations, outcomes)

	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		resources: make(map[string]int64),
		registry:  registry,
		durations: durations,
		outcomes:  outcomes,
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	c.durations.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordResource counts a resource outcome (StatusOK, StatusFailed, StatusExcluded).
func (c *Collector) RecordResource(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resources[status]++
	c.outcomes.WithLabelValues(status).Inc()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(op string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Op:          op,
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds:     time.Since(c.startTime).Seconds(),
		ResourcesOK:       c.resources[StatusOK],
		ResourcesFailed:   c.resources[StatusFailed],
		ResourcesExcluded: c.resources[StatusExcluded],
	}
	for op, m := range c.ops {
		if s := snapshotOp(op, m); s != nil {
			snap.Operations = append(snap.Operations, *s)
		}
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Op < snap.Operations[j].Op
	})
	return snap
}

// Registry exposes the Prometheus registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes the metrics in Prometheus text format, for the
// node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
