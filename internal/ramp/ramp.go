// Package ramp implements pure, stateless ramp strategies: functions from
// elapsed seconds to a target virtual-user concurrency. The interpolation
// shape mirrors a load generator's spawner-loop ramp-schedule math,
// generalized to two named strategies (step and linear) with
// construction-time validation of their parameters.
package ramp

import (
	"math"

	vajerrors "vajraedge/internal/errors"
)

// Strategy maps elapsed seconds since test start to a target concurrency.
type Strategy interface {
	TargetConcurrency(elapsedSeconds float64) uint32
}

// Linear ramps concurrency linearly from Start to Max over DurationSeconds.
type Linear struct {
	Start           uint32
	Max             uint32
	DurationSeconds float64
}

// NewLinear validates and constructs a Linear ramp strategy.
func NewLinear(start, max uint32, durationSeconds float64) (*Linear, error) {
	if start == 0 {
		return nil, vajerrors.Configuration("startingConcurrency must be > 0")
	}
	if max < start {
		return nil, vajerrors.Configuration("maxConcurrency must be >= startingConcurrency")
	}
	if durationSeconds <= 0 {
		return nil, vajerrors.Configuration("rampDurationSeconds must be > 0")
	}
	return &Linear{Start: start, Max: max, DurationSeconds: durationSeconds}, nil
}

// TargetConcurrency implements Strategy.
func (l *Linear) TargetConcurrency(elapsed float64) uint32 {
	if elapsed <= 0 {
		return l.Start
	}
	if elapsed >= l.DurationSeconds {
		return l.Max
	}
	span := float64(l.Max) - float64(l.Start)
	value := float64(l.Start) + span*elapsed/l.DurationSeconds
	return clamp(uint32(math.Round(value)), l.Start, l.Max)
}

// Step holds concurrency at Start, then increases it by Step every
// IntervalSeconds, clamped to Max.
type Step struct {
	Start           uint32
	Step            uint32
	IntervalSeconds float64
	Max             uint32
}

// NewStep validates and constructs a Step ramp strategy.
func NewStep(start, step uint32, intervalSeconds float64, max uint32) (*Step, error) {
	if start == 0 {
		return nil, vajerrors.Configuration("startingConcurrency must be > 0")
	}
	if max < start {
		return nil, vajerrors.Configuration("maxConcurrency must be >= startingConcurrency")
	}
	if intervalSeconds <= 0 {
		return nil, vajerrors.Configuration("rampIntervalSeconds must be > 0")
	}
	if step == 0 {
		return nil, vajerrors.Configuration("rampStep must be > 0")
	}
	return &Step{Start: start, Step: step, IntervalSeconds: intervalSeconds, Max: max}, nil
}

// TargetConcurrency implements Strategy.
func (s *Step) TargetConcurrency(elapsed float64) uint32 {
	if elapsed <= 0 {
		return s.Start
	}
	completed := math.Floor(elapsed / s.IntervalSeconds)
	value := float64(s.Start) + completed*float64(s.Step)
	return clamp(uint32(value), s.Start, s.Max)
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
