package vuser

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vajraedge/internal/tasks"
	"vajraedge/internal/types"
)

// throttleBackoff is how long a virtual user waits before rechecking
// whether it's still paused.
const throttleBackoff = 20 * time.Millisecond

// ResultFunc receives a completed task's result. Implementations must be
// safe for concurrent use; it is typically a metrics.Collector's
// RecordResult method.
type ResultFunc func(types.TaskResult)

// virtualUser is one live goroutine-backed actor. Its lifetime is owned
// entirely by Manager: no field is read or written outside Manager's
// methods and its own run loop.
type virtualUser struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns an ordered collection of virtual users and drives their
// count to match a target, removing the most-recently-added user first
// (keeping long-lived users warm). Dispatch of new task invocations can be
// paused and resumed wholesale via SetPaused, independent of the live user
// count, to implement tick-level throttling.
type Manager struct {
	mu    sync.Mutex
	users []*virtualUser
	wg    sync.WaitGroup

	nextVUID uint64
	taskSeq  atomic.Uint64
	active   atomic.Int32
	paused   atomic.Bool

	factory  tasks.Factory
	onResult ResultFunc
	logger   *zap.Logger
}

// NewManager constructs a Manager bound to one task factory and result
// sink.
func NewManager(factory tasks.Factory, onResult ResultFunc, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory:  factory,
		onResult: onResult,
		logger:   logger,
	}
}

// SetTargetCount adds or removes virtual users so the live count matches
// target. Safe for concurrent use, though in practice only the control
// loop (a single writer) calls it.
func (m *Manager) SetTargetCount(target uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for uint32(len(m.users)) < target {
		m.spawnLocked()
	}
	for uint32(len(m.users)) > target {
		m.removeNewestLocked()
	}
}

// Count returns the current number of live virtual users.
func (m *Manager) Count() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(len(m.users))
}

// ActiveTasks returns the number of in-flight task invocations across all
// virtual users.
func (m *Manager) ActiveTasks() int32 {
	return m.active.Load()
}

// SetPaused controls whether virtual users dispatch new task invocations.
// While paused, live users sit idle and recheck every throttleBackoff
// instead of exiting; it does not change the live user count.
func (m *Manager) SetPaused(paused bool) {
	m.paused.Store(paused)
}

// Paused reports the current pause state set by SetPaused.
func (m *Manager) Paused() bool {
	return m.paused.Load()
}

func (m *Manager) spawnLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	vu := &virtualUser{
		id:     m.nextVUID,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.nextVUID++

	m.wg.Add(1)
	go m.run(vu)

	m.users = append(m.users, vu)
}

// removeNewestLocked pops the last-added user and signals it to exit. It
// does not block waiting for the goroutine to observe cancellation;
// Shutdown is responsible for bounding that wait.
func (m *Manager) removeNewestLocked() {
	n := len(m.users)
	if n == 0 {
		return
	}
	vu := m.users[n-1]
	m.users = m.users[:n-1]
	vu.cancel()
}

// run is one virtual user's loop: construct a task, execute it, record
// the result, repeat, until its context is cancelled.
func (m *Manager) run(vu *virtualUser) {
	defer m.wg.Done()
	defer close(vu.done)

	for {
		select {
		case <-vu.ctx.Done():
			return
		default:
		}

		if m.paused.Load() {
			select {
			case <-vu.ctx.Done():
				return
			case <-time.After(throttleBackoff):
			}
			continue
		}

		m.executeOnce(vu)
	}
}

// executeOnce runs a single task invocation with panic recovery: an
// internal panic is logged and the virtual user's loop continues on its
// next iteration rather than exiting.
func (m *Manager) executeOnce(vu *virtualUser) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("virtual user task panicked, continuing",
				zap.Uint64("vuId", vu.id), zap.Any("panic", r))
		}
	}()

	m.active.Add(1)
	defer m.active.Add(-1)

	taskID := m.taskSeq.Add(1)
	task := m.factory.New()

	result, err := task.Execute(vu.ctx, taskID)
	if err != nil {
		result = types.TaskResult{TaskID: taskID, Success: false, ErrorKind: "unknown"}
	}

	if m.onResult != nil {
		m.onResult(result)
	}
}

// Shutdown cancels every live virtual user and waits up to budget for
// their loops to exit. Any still running after the budget are abandoned;
// their in-flight goroutines will still terminate once their current
// task invocation returns.
func (m *Manager) Shutdown(budget time.Duration) {
	m.mu.Lock()
	for _, vu := range m.users {
		vu.cancel()
	}
	m.users = nil
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(budget):
		m.logger.Warn("virtual user shutdown budget exceeded, abandoning stragglers")
	}
}
