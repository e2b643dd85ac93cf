// Package metrics provides Prometheus instrumentation for strata pipelines.
//
// # Overview
//
// Every pipeline owns a Collector labelled with the pipeline name. The
// pipeline reports rows and bytes crossing its boundary, batches handled per
// step, time spent per step and records written to side channels:
//
//	c := metrics.NewCollector("clean-logs")
//	c.AddRows(metrics.DirectionIn, 1024)
//	timer := metrics.NewTimer("filter")
//	...
//	c.ObserveStep("filter", timer.Stop())
//
// The CLI exposes the default registry over HTTP when --metrics-addr is set.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Direction labels counters at the pipeline boundary.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

var (
	// RowsProcessed counts rows entering the first step and rows handed to
	// the encoder.
	// Labels: pipeline, direction (in/out)
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_total",
			Help: "Rows entering and leaving the transform chain",
		},
		[]string{"pipeline", "direction"},
	)

	// BytesProcessed counts bytes pushed into the decoder and written by the
	// encoder.
	// Labels: pipeline, direction (in/out)
	BytesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_bytes_total",
			Help: "Bytes pushed into the decoder and produced by the encoder",
		},
		[]string{"pipeline", "direction"},
	)

	// BatchesProcessed counts batches handled by each step.
	// Labels: pipeline, op
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_batches_total",
			Help: "Batches processed per step",
		},
		[]string{"pipeline", "op"},
	)

	// StepLatency tracks time spent in Process and Flush per step, in seconds.
	// Labels: pipeline, op
	StepLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "strata_step_duration_seconds",
			Help: "Time spent inside a step per call",
			Buckets: []float64{
				1e-6, // 1μs
				1e-5, // 10μs
				1e-4, // 100μs
				1e-3, // 1ms
				1e-2, // 10ms
				1e-1, // 100ms
				1,    // 1s
			},
		},
		[]string{"pipeline", "op"},
	)

	// SideRecords counts newline-delimited records written to side channels.
	// Labels: pipeline, channel (errors/stats/samples)
	SideRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_side_records_total",
			Help: "Records written to side channels",
		},
		[]string{"pipeline", "channel"},
	)

	// Throughput tracks input rows per second for the most recent window.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_throughput_rows_per_second",
			Help: "Current input throughput in rows per second",
		},
		[]string{"pipeline"},
	)
)

// Collector records metrics for a single pipeline.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a collector labelled with the pipeline name.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// Name returns the pipeline label.
func (c *Collector) Name() string { return c.name }

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// AddRows adds n rows in the given direction.
func (c *Collector) AddRows(dir Direction, n int) {
	if n > 0 {
		RowsProcessed.WithLabelValues(c.name, string(dir)).Add(float64(n))
	}
}

// AddBytes adds n bytes in the given direction.
func (c *Collector) AddBytes(dir Direction, n int) {
	if n > 0 {
		BytesProcessed.WithLabelValues(c.name, string(dir)).Add(float64(n))
	}
}

// ObserveStep records one call into a step.
func (c *Collector) ObserveStep(op string, d time.Duration) {
	BatchesProcessed.WithLabelValues(c.name, op).Inc()
	StepLatency.WithLabelValues(c.name, op).Observe(d.Seconds())
}

// SideRecord counts one record written to a side channel.
func (c *Collector) SideRecord(channel string) {
	SideRecords.WithLabelValues(c.name, channel).Inc()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer label.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker computes rows per second over successive windows.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	pipeline  string
}

// NewThroughputTracker creates a tracker for a pipeline.
func NewThroughputTracker(pipeline string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		pipeline:  pipeline,
	}
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns rows per second since the previous call, publishes it
// to the Throughput gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.pipeline).Set(throughput)
	return throughput
}
