// Package metrics implements the in-process latency/throughput collector:
// atomic counters for task totals plus a mutex-guarded history that each
// recorded result appends to and each Snapshot reads. The percentile method is
// the linear-interpolation-between-ranks estimator common to load-testing
// tools; the bounded-history / windowed-TPS shape keeps a capped sample
// window alongside the running totals instead of just the latter.
package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vajraedge/internal/types"
)

const (
	maxLatencyHistory   = 10_000
	maxTimestampHistory = 100_000
	tpsWindow           = 5 * time.Second
)

// Collector aggregates TaskResults for a single test execution (local, or
// on a worker before it is streamed to the controller).
type Collector struct {
	testID string

	totalTasks      atomic.Uint64
	successfulTasks atomic.Uint64
	failedTasks     atomic.Uint64
	activeTasks     atomic.Int32

	mu               sync.Mutex
	latencyNanos     []int64 // ring-bounded, most recent maxLatencyHistory
	latencyWriteHead int
	completionTimes  []time.Time // ring-bounded, most recent maxTimestampHistory
	timestampHead    int
	errorCounts      map[string]uint64

	promTasksTotal    *prometheus.CounterVec
	promActiveTasks   prometheus.Gauge
	promTaskLatencyMs prometheus.Histogram
}

// NewCollector constructs a Collector for one test/worker pair. registerer
// may be nil, in which case no prometheus series are exported for this
// collector (used in unit tests to avoid global-registry collisions).
func NewCollector(testID string, registerer prometheus.Registerer) *Collector {
	c := &Collector{
		testID:          testID,
		latencyNanos:    make([]int64, 0, maxLatencyHistory),
		completionTimes: make([]time.Time, 0, maxTimestampHistory),
		errorCounts:     make(map[string]uint64),
		promTasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vajraedge_tasks_total",
			Help: "Total number of executed tasks by outcome.",
		}, []string{"test_id", "outcome"}),
		promActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "vajraedge_active_tasks",
			Help:        "Number of tasks currently in flight.",
			ConstLabels: prometheus.Labels{"test_id": testID},
		}),
		promTaskLatencyMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "vajraedge_task_latency_ms",
			Help:        "Task latency distribution in milliseconds.",
			ConstLabels: prometheus.Labels{"test_id": testID},
			Buckets:     prometheus.DefBuckets,
		}),
	}

	if registerer != nil {
		registerer.MustRegister(c.promTasksTotal, c.promActiveTasks, c.promTaskLatencyMs)
	}

	return c
}

// RecordResult folds one task completion into the collector. Safe for
// concurrent use by many virtual users.
func (c *Collector) RecordResult(result types.TaskResult) {
	c.totalTasks.Add(1)
	if result.Success {
		c.successfulTasks.Add(1)
		c.promTasksTotal.WithLabelValues(c.testID, "success").Inc()
	} else {
		c.failedTasks.Add(1)
		c.promTasksTotal.WithLabelValues(c.testID, "failure").Inc()
	}

	latencyMs := float64(result.LatencyNanos) / float64(time.Millisecond)
	c.promTaskLatencyMs.Observe(latencyMs)

	now := time.Now()

	c.mu.Lock()
	c.pushLatency(int64(result.LatencyNanos))
	c.pushTimestamp(now)
	if !result.Success && result.ErrorKind != "" {
		c.errorCounts[result.ErrorKind]++
	}
	c.mu.Unlock()
}

// SetActiveTasks records the current in-flight task count, reported by the
// engine's control loop rather than derived from RecordResult calls.
func (c *Collector) SetActiveTasks(n int32) {
	c.activeTasks.Store(n)
	c.promActiveTasks.Set(float64(n))
}

// pushLatency appends to a capped ring buffer, overwriting the oldest
// sample once the cap is reached. Caller must hold c.mu.
func (c *Collector) pushLatency(nanos int64) {
	if len(c.latencyNanos) < maxLatencyHistory {
		c.latencyNanos = append(c.latencyNanos, nanos)
		return
	}
	c.latencyNanos[c.latencyWriteHead] = nanos
	c.latencyWriteHead = (c.latencyWriteHead + 1) % maxLatencyHistory
}

// pushTimestamp appends to a capped ring buffer used for the windowed TPS
// calculation. Caller must hold c.mu.
func (c *Collector) pushTimestamp(t time.Time) {
	if len(c.completionTimes) < maxTimestampHistory {
		c.completionTimes = append(c.completionTimes, t)
		return
	}
	c.completionTimes[c.timestampHead] = t
	c.timestampHead = (c.timestampHead + 1) % maxTimestampHistory
}

// Snapshot returns a point-in-time, immutable view of the collector.
func (c *Collector) Snapshot() types.MetricsSnapshot {
	c.mu.Lock()
	latencies := make([]int64, len(c.latencyNanos))
	copy(latencies, c.latencyNanos)
	errs := make(map[string]uint64, len(c.errorCounts))
	for k, v := range c.errorCounts {
		errs[k] = v
	}
	tps := c.currentTpsLocked()
	c.mu.Unlock()

	return types.MetricsSnapshot{
		TotalTasks:        c.totalTasks.Load(),
		SuccessfulTasks:   c.successfulTasks.Load(),
		FailedTasks:       c.failedTasks.Load(),
		ActiveTasks:       c.activeTasks.Load(),
		CurrentTps:        tps,
		LatencyStats:      latencyStats(latencies),
		ErrorCountsByKind: errs,
		TimestampMs:       time.Now().UnixMilli(),
	}
}

// currentTpsLocked counts completions within the trailing tpsWindow.
// Caller must hold c.mu.
func (c *Collector) currentTpsLocked() float64 {
	if len(c.completionTimes) == 0 {
		return 0
	}
	cutoff := time.Now().Add(-tpsWindow)
	count := 0
	for _, t := range c.completionTimes {
		if t.After(cutoff) {
			count++
		}
	}
	return float64(count) / tpsWindow.Seconds()
}

// Close unregisters this collector's prometheus series. registerer must be
// the same Registerer passed to NewCollector, or nil.
func (c *Collector) Close(registerer prometheus.Registerer) {
	if registerer == nil {
		return
	}
	registerer.Unregister(c.promTasksTotal)
	registerer.Unregister(c.promActiveTasks)
	registerer.Unregister(c.promTaskLatencyMs)
}

// latencyStats computes summary statistics over a set of nanosecond
// latencies, expressed in milliseconds.
func latencyStats(nanos []int64) types.LatencyStats {
	if len(nanos) == 0 {
		return types.LatencyStats{}
	}

	sorted := make([]int64, len(nanos))
	copy(sorted, nanos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, n := range sorted {
		sum += n
	}

	toMs := func(n float64) float64 { return n / float64(time.Millisecond) }

	return types.LatencyStats{
		P50Ms:  toMs(percentile(sorted, 50)),
		P95Ms:  toMs(percentile(sorted, 95)),
		P99Ms:  toMs(percentile(sorted, 99)),
		MeanMs: toMs(float64(sum) / float64(len(sorted))),
		MinMs:  toMs(float64(sorted[0])),
		MaxMs:  toMs(float64(sorted[len(sorted)-1])),
	}
}

// percentile estimates the p-th percentile (0-100) of sorted ascending
// values by linear interpolation between the two bracketing ranks.
func percentile(sorted []int64, p float64) float64 {
	if len(sorted) == 1 {
		return float64(sorted[0])
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return float64(sorted[lower])
	}

	frac := rank - float64(lower)
	return float64(sorted[lower])*(1-frac) + float64(sorted[upper])*frac
}
