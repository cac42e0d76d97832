package controller

import (
	"sync"
	"time"

	"vajraedge/internal/types"
)

// staleMultiple is how many metrics-stream intervals may elapse before a
// worker's last report is excluded from aggregation.
const staleMultiple = 3

type workerReport struct {
	metrics    types.WorkerMetrics
	receivedAt time.Time
}

// Aggregator maintains the most-recent WorkerMetrics reported by each
// worker for each distributed testId and computes a combined snapshot on
// query. Workers compute totalTasks/tps/percentiles the same way a
// single-node test would (via metrics.Collector); the aggregator then
// combines those per-worker summaries with a weighted mean rather than
// re-deriving percentiles from raw samples. This is biased for workers
// with skewed latency distributions but avoids streaming raw latencies
// across the wire.
type Aggregator struct {
	streamInterval time.Duration

	mu      sync.RWMutex
	reports map[string]map[string]workerReport // testId -> workerId -> latest report
}

// NewAggregator constructs an Aggregator. streamInterval configures the
// staleness cutoff (3x this value); it defaults to 5s when non-positive.
func NewAggregator(streamInterval time.Duration) *Aggregator {
	if streamInterval <= 0 {
		streamInterval = 5 * time.Second
	}
	return &Aggregator{streamInterval: streamInterval, reports: make(map[string]map[string]workerReport)}
}

// Record stores wm as the latest report for its (testId, workerId) pair.
func (a *Aggregator) Record(wm types.WorkerMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byWorker, ok := a.reports[wm.TestID]
	if !ok {
		byWorker = make(map[string]workerReport)
		a.reports[wm.TestID] = byWorker
	}
	byWorker[wm.WorkerID] = workerReport{metrics: wm, receivedAt: time.Now()}
}

// Forget drops all retained reports for testId, freeing memory once a
// distributed test is no longer queryable.
func (a *Aggregator) Forget(testID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reports, testID)
}

// Aggregate combines the non-stale reports for testId into one
// MetricsSnapshot: summed counts and currentTps, and a totalTasks-weighted
// mean of each worker's p50/p95/p99. Returns the zero snapshot if testId
// has no reports; if every report is stale, counts and percentiles are
// zero but TimestampMs is set.
func (a *Aggregator) Aggregate(testID string) types.MetricsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byWorker := a.reports[testID]
	if len(byWorker) == 0 {
		return types.MetricsSnapshot{}
	}

	staleCutoff := time.Duration(staleMultiple) * a.streamInterval
	now := time.Now()

	var out types.MetricsSnapshot
	out.ErrorCountsByKind = make(map[string]uint64)

	var weightedP50, weightedP95, weightedP99 float64
	var totalWeight uint64

	for _, r := range byWorker {
		if now.Sub(r.receivedAt) > staleCutoff {
			continue
		}
		s := r.metrics.Snapshot

		out.TotalTasks += s.TotalTasks
		out.SuccessfulTasks += s.SuccessfulTasks
		out.FailedTasks += s.FailedTasks
		out.ActiveTasks += s.ActiveTasks
		out.CurrentTps += s.CurrentTps
		for kind, count := range s.ErrorCountsByKind {
			out.ErrorCountsByKind[kind] += count
		}

		weight := float64(s.TotalTasks)
		weightedP50 += s.LatencyStats.P50Ms * weight
		weightedP95 += s.LatencyStats.P95Ms * weight
		weightedP99 += s.LatencyStats.P99Ms * weight
		totalWeight += s.TotalTasks
	}

	if totalWeight > 0 {
		w := float64(totalWeight)
		out.LatencyStats.P50Ms = weightedP50 / w
		out.LatencyStats.P95Ms = weightedP95 / w
		out.LatencyStats.P99Ms = weightedP99 / w
	}
	out.TimestampMs = now.UnixMilli()

	return out
}
