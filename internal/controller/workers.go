// Package controller implements the controller-side coordination: a
// worker registry with health sweeping, a capacity-proportional task
// distributor, and a weighted-percentile metrics aggregator, wired
// together over net/rpc. The worker map is mutex-protected and exposed
// for registration over RPC; a background timer sweeps it for workers
// that stop heartbeating.
package controller

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"vajraedge/internal/types"
)

// sweepInterval is how often the worker manager inspects registered
// workers for heartbeat staleness.
const sweepInterval = 10 * time.Second

// WorkerManager is the registry of known workers plus the background
// timer that demotes and removes workers that stop heartbeating.
// Registration and unregistration are serialised by mu.
type WorkerManager struct {
	mu                  sync.RWMutex
	workers             map[string]*types.WorkerInfo
	heartbeatTimeout    time.Duration
	workerRemoveTimeout time.Duration
	logger              *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewWorkerManager constructs a WorkerManager. heartbeatTimeout and
// workerRemoveTimeout default to 30s/60s when zero.
func NewWorkerManager(heartbeatTimeout, workerRemoveTimeout time.Duration, logger *zap.Logger) *WorkerManager {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 30 * time.Second
	}
	if workerRemoveTimeout <= 0 {
		workerRemoveTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerManager{
		workers:             make(map[string]*types.WorkerInfo),
		heartbeatTimeout:    heartbeatTimeout,
		workerRemoveTimeout: workerRemoveTimeout,
		logger:              logger,
		stop:                make(chan struct{}),
		done:                make(chan struct{}),
	}
}

// Register adds or replaces a worker's registry entry. A worker that
// re-registers after being removed always starts from a fresh entry; the
// controller never re-animates a previously-removed workerId's old state.
func (m *WorkerManager) Register(info types.WorkerInfo) {
	info.Status = types.WorkerHealthy
	info.LastHeartbeatMs = time.Now().UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[info.WorkerID] = &info
}

// Heartbeat records a liveness ping and the worker's self-reported load,
// reviving an UNHEALTHY worker back to HEALTHY. Reports for an unknown
// workerId are ignored (the worker must RegisterWorker first).
func (m *WorkerManager) Heartbeat(workerID string, currentLoad uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[workerID]
	if !ok {
		return false
	}
	w.CurrentLoad = currentLoad
	w.LastHeartbeatMs = time.Now().UnixMilli()
	w.Status = types.WorkerHealthy
	return true
}

// Get returns a copy of the registry entry for workerID.
func (m *WorkerManager) Get(workerID string) (types.WorkerInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workers[workerID]
	if !ok {
		return types.WorkerInfo{}, false
	}
	return *w, true
}

// Healthy returns a snapshot of every HEALTHY worker, sorted by workerId
// for deterministic downstream iteration.
func (m *WorkerManager) Healthy() []types.WorkerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.WorkerInfo, 0, len(m.workers))
	for _, w := range m.workers {
		if w.Status == types.WorkerHealthy {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}

// All returns a snapshot of every registered worker regardless of status.
func (m *WorkerManager) All() []types.WorkerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.WorkerInfo, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}

// StartSweep launches the background health timer; call Stop to halt it.
func (m *WorkerManager) StartSweep() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// Stop halts the background health timer and waits for it to exit.
func (m *WorkerManager) Stop() {
	close(m.stop)
	<-m.done
}

func (m *WorkerManager) sweep() {
	now := time.Now().UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, w := range m.workers {
		silence := time.Duration(now-w.LastHeartbeatMs) * time.Millisecond
		switch w.Status {
		case types.WorkerHealthy:
			if silence > m.heartbeatTimeout {
				w.Status = types.WorkerUnhealthy
				m.logger.Warn("worker marked unhealthy", zap.String("workerId", id), zap.Duration("silence", silence))
			}
		case types.WorkerUnhealthy:
			if silence > m.heartbeatTimeout+m.workerRemoveTimeout {
				delete(m.workers, id)
				m.logger.Warn("worker removed after prolonged silence", zap.String("workerId", id), zap.Duration("silence", silence))
			}
		}
	}
}
