package suite

import (
	"vajraedge/internal/errors"
	"vajraedge/internal/types"
)

// ExecutionMode controls how a TestSuite's scenarios are scheduled.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "SEQUENTIAL"
	ModeParallel   ExecutionMode = "PARALLEL"
)

// TestScenario is one configuration plus an optional task mix within a
// suite. When Mix is set, the suite executor builds a per-invocation task
// factory that calls Mix.Select() fresh for every virtual-user invocation,
// so the scenario's effective task type varies across the run according to
// the mix's weights rather than being fixed once; otherwise every
// invocation uses Config.TaskType.
type TestScenario struct {
	ScenarioID string
	Name       string
	Config     types.TestConfig
	Mix        *TaskMix
	FailFast   bool
}

// TestSuite is an ordered or parallel collection of scenarios with an
// optional shared correlation context.
type TestSuite struct {
	SuiteID        string
	Name           string
	ExecutionMode  ExecutionMode
	UseCorrelation bool
	Scenarios      []TestScenario
}

// Validate enforces the suite's structural invariants: non-empty
// scenarios, unique scenarioIds within the suite.
func (s TestSuite) Validate() error {
	if len(s.Scenarios) == 0 {
		return errors.Configuration("suite must contain at least one scenario")
	}
	seen := make(map[string]struct{}, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		if _, dup := seen[sc.ScenarioID]; dup {
			return errors.Configuration("duplicate scenarioId in suite: " + sc.ScenarioID)
		}
		seen[sc.ScenarioID] = struct{}{}
	}
	return nil
}

// ScenarioResult is one scenario's outcome within a suite run.
type ScenarioResult struct {
	ScenarioID    string
	Status        types.TestStatus
	Metrics       types.MetricsSnapshot
	FailureReason string
}

// SuiteResult aggregates every scenario's outcome. Status is the worst
// scenario status observed (FAILED worse than STOPPED worse than
// COMPLETED).
type SuiteResult struct {
	SuiteID   string
	Status    types.TestStatus
	Scenarios []ScenarioResult
}

// worstStatus folds a new scenario status into the running aggregate.
func worstStatus(aggregate, next types.TestStatus) types.TestStatus {
	rank := func(s types.TestStatus) int {
		switch s {
		case types.StatusFailed:
			return 2
		case types.StatusStopped:
			return 1
		default:
			return 0
		}
	}
	if rank(next) > rank(aggregate) {
		return next
	}
	return aggregate
}
