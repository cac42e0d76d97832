package vuser

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vajraedge/internal/metrics"
	"vajraedge/internal/types"
)

// controlTickInterval is the control loop's wake-up period.
const controlTickInterval = 100 * time.Millisecond

// PhaseFunc is invoked whenever the engine's observability phase changes
// between RAMPING and SUSTAINING.
type PhaseFunc func(phase types.TestStatus)

// Engine ties a ConcurrencyController and a Manager together into the
// per-test control loop: every tick it computes the target concurrency,
// drives the manager towards it, checks whether the controller's TPS
// throttle should pause dispatch, publishes the ramp/sustain phase, and
// reports when the configured test duration has elapsed.
type Engine struct {
	controller          *ConcurrencyController
	manager             *Manager
	collector           *metrics.Collector
	rampEndSeconds      float64
	testDurationSeconds float64
	onPhaseChange       PhaseFunc
	logger              *zap.Logger
}

// NewEngine constructs an Engine. onPhaseChange may be nil.
func NewEngine(controller *ConcurrencyController, manager *Manager, collector *metrics.Collector, rampEndSeconds, testDurationSeconds float64, onPhaseChange PhaseFunc, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		controller:          controller,
		manager:             manager,
		collector:           collector,
		rampEndSeconds:      rampEndSeconds,
		testDurationSeconds: testDurationSeconds,
		onPhaseChange:       onPhaseChange,
		logger:              logger,
	}
}

// Run blocks until ctx is cancelled or the configured test duration has
// elapsed, ticking the control loop every controlTickInterval.
func (e *Engine) Run(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(controlTickInterval)
	defer ticker.Stop()

	var lastPhase types.TestStatus

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()

			target := e.controller.TargetConcurrency(elapsed)
			e.manager.SetTargetCount(target)
			e.collector.SetActiveTasks(e.manager.ActiveTasks())

			currentTps := e.collector.Snapshot().CurrentTps
			e.manager.SetPaused(e.controller.ShouldThrottle(currentTps))

			phase := types.StatusRamping
			if elapsed >= e.rampEndSeconds {
				phase = types.StatusSustaining
			}
			if phase != lastPhase {
				lastPhase = phase
				if e.onPhaseChange != nil {
					e.onPhaseChange(phase)
				}
			}

			if elapsed >= e.testDurationSeconds {
				e.logger.Debug("test duration elapsed, control loop exiting")
				return
			}
		}
	}
}
