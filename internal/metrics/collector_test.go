package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vajraedge/internal/types"
)

func TestRecordResultAccumulatesCounts(t *testing.T) {
	c := NewCollector("test-1", nil)

	c.RecordResult(types.TaskResult{Success: true, LatencyNanos: uint64(10 * time.Millisecond)})
	c.RecordResult(types.TaskResult{Success: false, LatencyNanos: uint64(20 * time.Millisecond), ErrorKind: "TIMEOUT"})
	c.RecordResult(types.TaskResult{Success: false, LatencyNanos: uint64(30 * time.Millisecond), ErrorKind: "TIMEOUT"})

	snap := c.Snapshot()
	require.Equal(t, uint64(3), snap.TotalTasks)
	require.Equal(t, uint64(1), snap.SuccessfulTasks)
	require.Equal(t, uint64(2), snap.FailedTasks)
	require.Equal(t, uint64(2), snap.ErrorCountsByKind["TIMEOUT"])
	require.InDelta(t, 66.666, snap.ErrorRate(), 0.01)
}

func TestSnapshotLatencyStatsKnownDistribution(t *testing.T) {
	c := NewCollector("test-2", nil)

	for _, ms := range []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100} {
		c.RecordResult(types.TaskResult{Success: true, LatencyNanos: uint64(time.Duration(ms) * time.Millisecond)})
	}

	snap := c.Snapshot()
	require.InDelta(t, 10, snap.LatencyStats.MinMs, 0.01)
	require.InDelta(t, 100, snap.LatencyStats.MaxMs, 0.01)
	require.InDelta(t, 55, snap.LatencyStats.MeanMs, 0.01)
	require.InDelta(t, 55, snap.LatencyStats.P50Ms, 0.01)
}

func TestSetActiveTasksReflectsInSnapshot(t *testing.T) {
	c := NewCollector("test-3", nil)
	c.SetActiveTasks(42)

	require.Equal(t, int32(42), c.Snapshot().ActiveTasks)
}

func TestCurrentTpsCountsOnlyRecentCompletions(t *testing.T) {
	c := NewCollector("test-4", nil)

	c.mu.Lock()
	c.pushTimestamp(time.Now().Add(-10 * time.Second)) // outside the 5s window
	c.pushTimestamp(time.Now())
	c.pushTimestamp(time.Now())
	c.mu.Unlock()

	tps := c.Snapshot().CurrentTps
	require.Greater(t, tps, float64(0))
}

func TestLatencyHistoryWrapsWithoutGrowingUnbounded(t *testing.T) {
	c := NewCollector("test-5", nil)

	for i := 0; i < maxLatencyHistory+10; i++ {
		c.RecordResult(types.TaskResult{Success: true, LatencyNanos: uint64(i)})
	}

	c.mu.Lock()
	length := len(c.latencyNanos)
	c.mu.Unlock()

	require.Equal(t, maxLatencyHistory, length)
}

func TestEmptyCollectorSnapshotHasZeroStats(t *testing.T) {
	c := NewCollector("test-6", nil)
	snap := c.Snapshot()

	require.Equal(t, uint64(0), snap.TotalTasks)
	require.Equal(t, float64(0), snap.LatencyStats.MeanMs)
}
