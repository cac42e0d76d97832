package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vajraedge/internal/types"
)

func TestAggregatorAggregateWeightedPercentileScenario(t *testing.T) {
	a := NewAggregator(5 * time.Second)

	a.Record(types.WorkerMetrics{
		WorkerID: "w1", TestID: "t1",
		Snapshot: types.MetricsSnapshot{TotalTasks: 1000, LatencyStats: types.LatencyStats{P95Ms: 100}},
	})
	a.Record(types.WorkerMetrics{
		WorkerID: "w2", TestID: "t1",
		Snapshot: types.MetricsSnapshot{TotalTasks: 3000, LatencyStats: types.LatencyStats{P95Ms: 200}},
	})

	snap := a.Aggregate("t1")
	require.Equal(t, uint64(4000), snap.TotalTasks)
	require.InDelta(t, 175.0, snap.LatencyStats.P95Ms, 0.001)
}

func TestAggregatorAggregateSumsCountsAndTps(t *testing.T) {
	a := NewAggregator(5 * time.Second)
	a.Record(types.WorkerMetrics{WorkerID: "w1", TestID: "t1", Snapshot: types.MetricsSnapshot{
		TotalTasks: 10, SuccessfulTasks: 9, FailedTasks: 1, CurrentTps: 5,
	}})
	a.Record(types.WorkerMetrics{WorkerID: "w2", TestID: "t1", Snapshot: types.MetricsSnapshot{
		TotalTasks: 20, SuccessfulTasks: 18, FailedTasks: 2, CurrentTps: 7,
	}})

	snap := a.Aggregate("t1")
	require.Equal(t, uint64(30), snap.TotalTasks)
	require.Equal(t, uint64(27), snap.SuccessfulTasks)
	require.Equal(t, uint64(3), snap.FailedTasks)
	require.InDelta(t, 12.0, snap.CurrentTps, 0.001)
}

func TestAggregatorAggregateReturnsZeroSnapshotForUnknownTest(t *testing.T) {
	a := NewAggregator(5 * time.Second)
	snap := a.Aggregate("missing")
	require.Equal(t, uint64(0), snap.TotalTasks)
}

func TestAggregatorAggregateExcludesStaleReports(t *testing.T) {
	a := NewAggregator(5 * time.Millisecond)
	a.Record(types.WorkerMetrics{WorkerID: "w1", TestID: "t1", Snapshot: types.MetricsSnapshot{TotalTasks: 100}})

	time.Sleep(30 * time.Millisecond)

	snap := a.Aggregate("t1")
	require.Equal(t, uint64(0), snap.TotalTasks)
}

func TestAggregatorForgetDropsRetainedReports(t *testing.T) {
	a := NewAggregator(5 * time.Second)
	a.Record(types.WorkerMetrics{WorkerID: "w1", TestID: "t1", Snapshot: types.MetricsSnapshot{TotalTasks: 100}})
	a.Forget("t1")

	snap := a.Aggregate("t1")
	require.Equal(t, uint64(0), snap.TotalTasks)
}
