// Package executor implements the per-test lifecycle state machine: it owns
// one metrics.Collector, one ConcurrencyController and one vuser engine per
// test, and exposes the start/status/metrics/stop operations a control
// surface drives. The resource-scoping discipline — every exit path
// releases the collector and virtual-user manager — follows a
// signal-driven graceful shutdown shape, generalized from one
// process-wide shutdown to a per-test one.
package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"vajraedge/internal/errors"
	"vajraedge/internal/metrics"
	"vajraedge/internal/ramp"
	"vajraedge/internal/tasks"
	"vajraedge/internal/types"
	"vajraedge/internal/validation"
	"vajraedge/internal/vuser"
)

// MaxConcurrentTests is the global cap on non-terminal tests per executor
// process.
const MaxConcurrentTests = 10

// shutdownBudget is the graceful-drain window given to in-flight tasks
// once a test enters STOPPING.
const shutdownBudget = 5 * time.Second

// testRun is the mutable state backing one TestExecution.
type testRun struct {
	mu        sync.Mutex
	execution types.TestExecution

	collector *metrics.Collector
	manager   *vuser.Manager
	cancel    context.CancelFunc
	done      chan struct{}

	stopRequested atomic.Bool
}

func (r *testRun) snapshot() types.TestExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execution
}

func (r *testRun) setStatus(status types.TestStatus) {
	r.mu.Lock()
	r.execution.Status = status
	r.mu.Unlock()
}

func isTerminal(status types.TestStatus) bool {
	switch status {
	case types.StatusCompleted, types.StatusFailed, types.StatusStopped:
		return true
	default:
		return false
	}
}

// Executor runs one or more tests within one process, subject to
// MaxConcurrentTests.
type Executor struct {
	registry   *tasks.Registry
	registerer prometheus.Registerer
	logger     *zap.Logger

	mu    sync.Mutex
	tests map[string]*testRun
}

// New constructs an Executor. registerer may be nil to skip prometheus
// registration (used in tests).
func New(registry *tasks.Registry, registerer prometheus.Registerer, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry:   registry,
		registerer: registerer,
		logger:     logger,
		tests:      make(map[string]*testRun),
	}
}

// activeCountLocked counts non-terminal tests. Caller must hold e.mu.
func (e *Executor) activeCountLocked() int {
	count := 0
	for _, run := range e.tests {
		if !isTerminal(run.snapshot().Status) {
			count++
		}
	}
	return count
}

// Start validates cfg (unless validationOverride is true), builds the
// test's task factory from the registry by cfg.TaskType, and launches it.
// On any failure before the test begins running, no test is registered and
// the error is returned.
func (e *Executor) Start(ctx context.Context, cfg types.TestConfig, validationOverride bool) (string, error) {
	factory, err := e.registry.Build(cfg.TaskType, cfg.TaskParameters)
	if err != nil {
		return "", err
	}
	return e.StartWithFactory(ctx, cfg, factory, validationOverride)
}

// StartWithFactory is Start with an already-constructed task factory in
// place of a registry lookup by cfg.TaskType. Callers that need a test's
// task type resolved per invocation rather than fixed for the whole run
// (the suite executor's weighted task mix) build their own tasks.Factory
// that re-resolves on every New() call and pass it here.
func (e *Executor) StartWithFactory(ctx context.Context, cfg types.TestConfig, factory tasks.Factory, validationOverride bool) (string, error) {
	testID := cfg.TestID
	if testID == "" {
		testID = uuid.NewString()
		cfg.TestID = testID
	}

	e.mu.Lock()
	if _, exists := e.tests[testID]; exists {
		e.mu.Unlock()
		return "", errors.ErrAlreadyRunning
	}
	if e.activeCountLocked() >= MaxConcurrentTests {
		e.mu.Unlock()
		return "", errors.ErrTooManyTests
	}
	e.mu.Unlock()

	if !validationOverride {
		result := validation.Run(ctx, cfg, validation.BuiltinChecks())
		if result.Status == validation.StatusFail {
			err := errors.ErrValidationFailed
			details := make([]string, 0, len(result.Checks))
			for _, c := range result.Checks {
				if c.Status == validation.StatusFail {
					details = append(details, c.Name+": "+c.Message)
				}
			}
			return "", err.WithDetail("failedChecks", details)
		}
	}

	strategy, err := buildRampStrategy(cfg)
	if err != nil {
		return "", err
	}

	tpsLimit := uint32(0)
	if cfg.Mode == types.ModeRateLimited {
		tpsLimit = cfg.MaxTpsLimit
	}
	controller := vuser.NewConcurrencyController(strategy, cfg.StartingConcurrency, cfg.MaxConcurrency, tpsLimit)

	collector := metrics.NewCollector(testID, e.registerer)

	run := &testRun{
		execution: types.TestExecution{
			TestID:    testID,
			Config:    cfg,
			Status:    types.StatusRunning,
			StartedAt: time.Now(),
		},
		collector: collector,
		done:      make(chan struct{}),
	}
	run.manager = vuser.NewManager(factory, collector.RecordResult, e.logger)

	// runCtx keeps ctx's values (e.g. a suite's correlation context) but
	// not its cancellation — cancelling a request-scoped ctx must not kill
	// a long-running test. The control loop runs under runCtx; virtual
	// users derive their contexts from context.Background(), so tasks do
	// not see ctx's values.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run.cancel = cancel

	e.mu.Lock()
	e.tests[testID] = run
	e.mu.Unlock()

	engine := vuser.NewEngine(
		controller, run.manager, collector,
		float64(cfg.RampEndSeconds()), float64(cfg.TestDurationSeconds),
		func(phase types.TestStatus) {
			run.mu.Lock()
			if !isTerminal(run.execution.Status) && run.execution.Status != types.StatusStopping {
				run.execution.Status = phase
			}
			run.mu.Unlock()
		},
		e.logger,
	)

	go e.drive(runCtx, run, engine)

	return testID, nil
}

// drive runs one test's control loop to completion and releases its
// resources on every exit path.
func (e *Executor) drive(ctx context.Context, run *testRun, engine *vuser.Engine) {
	defer close(run.done)

	engine.Run(ctx, run.snapshot().StartedAt)

	run.manager.Shutdown(shutdownBudget)
	run.collector.Close(e.registerer)

	run.mu.Lock()
	if run.stopRequested.Load() {
		run.execution.Status = types.StatusStopped
	} else {
		run.execution.Status = types.StatusCompleted
	}
	run.execution.CompletedAt = time.Now()
	run.mu.Unlock()
}

// Status returns the current TestExecution for testID.
func (e *Executor) Status(testID string) (types.TestExecution, error) {
	run, ok := e.lookup(testID)
	if !ok {
		return types.TestExecution{}, errors.ErrNotFound
	}
	return run.snapshot(), nil
}

// Metrics returns the current MetricsSnapshot for testID.
func (e *Executor) Metrics(testID string) (types.MetricsSnapshot, error) {
	run, ok := e.lookup(testID)
	if !ok {
		return types.MetricsSnapshot{}, errors.ErrNotFound
	}
	return run.collector.Snapshot(), nil
}

// Stop transitions testID to STOPPING and signals its control loop to
// exit. When graceful is true, Stop blocks until the test has fully
// drained (bounded by shutdownBudget); otherwise it returns immediately.
func (e *Executor) Stop(testID string, graceful bool) error {
	run, ok := e.lookup(testID)
	if !ok {
		return errors.ErrNotFound
	}

	run.mu.Lock()
	if isTerminal(run.execution.Status) || run.execution.Status == types.StatusStopping {
		run.mu.Unlock()
		return errors.ErrNotRunning
	}
	run.execution.Status = types.StatusStopping
	run.mu.Unlock()

	run.stopRequested.Store(true)
	run.cancel()

	if graceful {
		<-run.done
	}
	return nil
}

// ListTests returns a snapshot of every TestExecution known to this
// executor, regardless of status.
func (e *Executor) ListTests() []types.TestExecution {
	e.mu.Lock()
	runs := make([]*testRun, 0, len(e.tests))
	for _, run := range e.tests {
		runs = append(runs, run)
	}
	e.mu.Unlock()

	out := make([]types.TestExecution, len(runs))
	for i, run := range runs {
		out[i] = run.snapshot()
	}
	return out
}

// Registry returns the task-type registry this executor builds factories
// from, for callers (such as the suite executor) that need to build their
// own tasks.Factory rather than go through Start's cfg.TaskType lookup.
func (e *Executor) Registry() *tasks.Registry { return e.registry }

func (e *Executor) lookup(testID string) (*testRun, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.tests[testID]
	return run, ok
}

// buildRampStrategy constructs the ramp.Strategy named by cfg.
func buildRampStrategy(cfg types.TestConfig) (ramp.Strategy, error) {
	switch cfg.RampStrategyType {
	case types.RampStep:
		return ramp.NewStep(cfg.StartingConcurrency, cfg.RampStep, float64(cfg.RampIntervalSeconds), cfg.MaxConcurrency)
	case types.RampLinear:
		return ramp.NewLinear(cfg.StartingConcurrency, cfg.MaxConcurrency, float64(cfg.RampDurationSeconds))
	default:
		return nil, errors.Configuration("unknown ramp strategy type: " + string(cfg.RampStrategyType))
	}
}
