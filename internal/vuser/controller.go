// Package vuser implements the concurrency controller and virtual-user
// engine: the control loop that drives a live pool of goroutines to match
// a target concurrency, executing tasks and feeding their results to a
// metrics collector. The spawn-on-tick / atomic-counter shape is grounded
// on the pack's load-testing reference (testmesh's LoadTester.Run ramp-up
// goroutine and its atomic activeVUs counter), generalized from a fixed
// ramp-up window to a pluggable ramp strategy and an indefinite sustain
// phase.
package vuser

import (
	"vajraedge/internal/ramp"
)

// ConcurrencyController composes a ramp strategy, a hard concurrency cap,
// and an optional TPS throttle.
type ConcurrencyController struct {
	strategy            ramp.Strategy
	startingConcurrency uint32
	maxConcurrency      uint32
	maxTpsLimit         uint32 // 0 means unset
}

// NewConcurrencyController constructs a controller. A zero maxTpsLimit
// means CONCURRENCY_BASED mode: ShouldThrottle always reports false.
func NewConcurrencyController(strategy ramp.Strategy, startingConcurrency, maxConcurrency, maxTpsLimit uint32) *ConcurrencyController {
	return &ConcurrencyController{
		strategy:            strategy,
		startingConcurrency: startingConcurrency,
		maxConcurrency:      maxConcurrency,
		maxTpsLimit:         maxTpsLimit,
	}
}

// TargetConcurrency delegates to the underlying ramp strategy.
func (c *ConcurrencyController) TargetConcurrency(elapsedSeconds float64) uint32 {
	return c.strategy.TargetConcurrency(elapsedSeconds)
}

// ShouldThrottle reports whether the observed TPS has reached the
// configured limit. Always false when no limit is configured. The engine's
// control loop calls this once per tick and pauses virtual-user dispatch
// for that tick when it reports true, re-checking on the next tick.
func (c *ConcurrencyController) ShouldThrottle(currentTps float64) bool {
	if c.maxTpsLimit == 0 {
		return false
	}
	return currentTps >= float64(c.maxTpsLimit)
}

// RampProgress returns the ramp's completion percentage in [0, 100] at
// elapsedSeconds. Returns 100 when maxConcurrency == startingConcurrency
// (a degenerate, already-sustained ramp).
func (c *ConcurrencyController) RampProgress(elapsedSeconds float64) float64 {
	if c.maxConcurrency == c.startingConcurrency {
		return 100
	}
	current := c.TargetConcurrency(elapsedSeconds)
	span := float64(c.maxConcurrency) - float64(c.startingConcurrency)
	progress := (float64(current) - float64(c.startingConcurrency)) / span * 100
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
