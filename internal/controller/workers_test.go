package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vajraedge/internal/types"
)

func taskTypeSet(taskTypes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(taskTypes))
	for _, t := range taskTypes {
		set[t] = struct{}{}
	}
	return set
}

func TestWorkerManagerRegisterThenGet(t *testing.T) {
	m := NewWorkerManager(0, 0, nil)
	m.Register(types.WorkerInfo{WorkerID: "w1", MaxCapacity: 100, SupportedTaskTypes: taskTypeSet("SLEEP")})

	w, ok := m.Get("w1")
	require.True(t, ok)
	require.Equal(t, types.WorkerHealthy, w.Status)
}

func TestWorkerManagerHeartbeatUnknownWorkerReturnsFalse(t *testing.T) {
	m := NewWorkerManager(0, 0, nil)
	require.False(t, m.Heartbeat("ghost", 5))
}

func TestWorkerManagerHeartbeatUpdatesLoad(t *testing.T) {
	m := NewWorkerManager(0, 0, nil)
	m.Register(types.WorkerInfo{WorkerID: "w1", MaxCapacity: 100})

	require.True(t, m.Heartbeat("w1", 42))
	w, _ := m.Get("w1")
	require.Equal(t, uint32(42), w.CurrentLoad)
}

func TestWorkerManagerHealthyExcludesUnhealthyWorkers(t *testing.T) {
	m := NewWorkerManager(0, 0, nil)
	m.Register(types.WorkerInfo{WorkerID: "w1", MaxCapacity: 100})
	m.Register(types.WorkerInfo{WorkerID: "w2", MaxCapacity: 100})

	m.mu.Lock()
	m.workers["w2"].Status = types.WorkerUnhealthy
	m.mu.Unlock()

	healthy := m.Healthy()
	require.Len(t, healthy, 1)
	require.Equal(t, "w1", healthy[0].WorkerID)
}

func TestWorkerManagerSweepMarksUnhealthyThenRemoves(t *testing.T) {
	m := NewWorkerManager(20*time.Millisecond, 20*time.Millisecond, nil)
	m.Register(types.WorkerInfo{WorkerID: "w1", MaxCapacity: 100})

	m.mu.Lock()
	m.workers["w1"].LastHeartbeatMs = time.Now().Add(-50 * time.Millisecond).UnixMilli()
	m.mu.Unlock()
	m.sweep()

	w, ok := m.Get("w1")
	require.True(t, ok)
	require.Equal(t, types.WorkerUnhealthy, w.Status)

	m.mu.Lock()
	m.workers["w1"].LastHeartbeatMs = time.Now().Add(-50 * time.Millisecond).UnixMilli()
	m.mu.Unlock()
	m.sweep()

	_, ok = m.Get("w1")
	require.False(t, ok)
}

func TestWorkerManagerHealthyOrderedByWorkerID(t *testing.T) {
	m := NewWorkerManager(0, 0, nil)
	m.Register(types.WorkerInfo{WorkerID: "w3", MaxCapacity: 10})
	m.Register(types.WorkerInfo{WorkerID: "w1", MaxCapacity: 10})
	m.Register(types.WorkerInfo{WorkerID: "w2", MaxCapacity: 10})

	healthy := m.Healthy()
	require.Equal(t, []string{"w1", "w2", "w3"}, []string{healthy[0].WorkerID, healthy[1].WorkerID, healthy[2].WorkerID})
}
