package suite

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vajraedge/internal/executor"
	"vajraedge/internal/tasks"
	"vajraedge/internal/types"
)

// pollInterval is how often the suite executor checks a running
// scenario's status while awaiting completion.
const pollInterval = 50 * time.Millisecond

// SuiteExecutor orchestrates TestSuite runs over one underlying
// executor.Executor, reusing its global concurrent-test cap.
type SuiteExecutor struct {
	executor *executor.Executor
	logger   *zap.Logger
}

// NewSuiteExecutor constructs a SuiteExecutor over ex.
func NewSuiteExecutor(ex *executor.Executor, logger *zap.Logger) *SuiteExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuiteExecutor{executor: ex, logger: logger}
}

// Run executes every scenario in suite, sequentially or in parallel per
// suite.ExecutionMode, and returns the aggregated SuiteResult.
func (se *SuiteExecutor) Run(ctx context.Context, testSuite TestSuite, validationOverride bool) (SuiteResult, error) {
	if err := testSuite.Validate(); err != nil {
		return SuiteResult{}, err
	}

	if testSuite.UseCorrelation {
		ctx = ContextWithCorrelation(ctx, NewCorrelationContext())
	}

	var results []ScenarioResult
	if testSuite.ExecutionMode == ModeParallel {
		results = se.runParallel(ctx, testSuite, validationOverride)
	} else {
		results = se.runSequential(ctx, testSuite, validationOverride)
	}

	status := types.StatusCompleted
	for _, r := range results {
		status = worstStatus(status, r.Status)
	}

	return SuiteResult{SuiteID: testSuite.SuiteID, Status: status, Scenarios: results}, nil
}

// runSequential runs each scenario in order, stopping early only if the
// scenario that just failed is marked FailFast.
func (se *SuiteExecutor) runSequential(ctx context.Context, testSuite TestSuite, validationOverride bool) []ScenarioResult {
	results := make([]ScenarioResult, 0, len(testSuite.Scenarios))

	for _, scenario := range testSuite.Scenarios {
		result := se.runScenario(ctx, scenario, validationOverride)
		results = append(results, result)

		if scenario.FailFast && (result.Status == types.StatusFailed || result.Status == types.StatusStopped) {
			se.logger.Warn("suite scenario failed with failFast set, aborting remaining scenarios",
				zap.String("scenarioId", scenario.ScenarioID))
			break
		}
	}

	return results
}

// runParallel starts every scenario concurrently and awaits all of them.
func (se *SuiteExecutor) runParallel(ctx context.Context, testSuite TestSuite, validationOverride bool) []ScenarioResult {
	results := make([]ScenarioResult, len(testSuite.Scenarios))

	var wg sync.WaitGroup
	for i, scenario := range testSuite.Scenarios {
		wg.Add(1)
		go func(i int, scenario TestScenario) {
			defer wg.Done()
			results[i] = se.runScenario(ctx, scenario, validationOverride)
		}(i, scenario)
	}
	wg.Wait()

	return results
}

// runScenario starts the scenario against the underlying executor and
// blocks until it reaches a terminal status. A scenario with a task mix
// resolves its task type fresh on every virtual-user invocation via a
// mixFactory rather than once for the whole scenario.
func (se *SuiteExecutor) runScenario(ctx context.Context, scenario TestScenario, validationOverride bool) ScenarioResult {
	cfg := scenario.Config
	if cfg.TestID == "" {
		cfg.TestID = scenario.ScenarioID
	}

	var (
		testID string
		err    error
	)
	if scenario.Mix != nil {
		var factory *mixFactory
		factory, err = newMixFactory(se.executor.Registry(), scenario.Mix, cfg.TaskParameters)
		if err == nil {
			testID, err = se.executor.StartWithFactory(ctx, cfg, factory, validationOverride)
		}
	} else {
		testID, err = se.executor.Start(ctx, cfg, validationOverride)
	}
	if err != nil {
		return ScenarioResult{
			ScenarioID:    scenario.ScenarioID,
			Status:        types.StatusFailed,
			FailureReason: err.Error(),
		}
	}

	for {
		exec, err := se.executor.Status(testID)
		if err != nil {
			return ScenarioResult{ScenarioID: scenario.ScenarioID, Status: types.StatusFailed, FailureReason: err.Error()}
		}
		if terminal(exec.Status) {
			snapshot, _ := se.executor.Metrics(testID)
			return ScenarioResult{
				ScenarioID:    scenario.ScenarioID,
				Status:        exec.Status,
				Metrics:       snapshot,
				FailureReason: exec.FailureReason,
			}
		}

		select {
		case <-ctx.Done():
			return ScenarioResult{ScenarioID: scenario.ScenarioID, Status: types.StatusFailed, FailureReason: ctx.Err().Error()}
		case <-time.After(pollInterval):
		}
	}
}

func terminal(status types.TestStatus) bool {
	switch status {
	case types.StatusCompleted, types.StatusFailed, types.StatusStopped:
		return true
	default:
		return false
	}
}

// mixFactory adapts a TaskMix plus one pre-built tasks.Factory per task
// type in that mix into a single tasks.Factory: every New() call
// re-selects the task type via mix.Select() and delegates to that type's
// underlying factory, so a scenario's task type is resolved per
// virtual-user invocation instead of once for the whole scenario run.
// Every task type in the mix shares the scenario's single TaskParameters
// bag; a mix of types that need different parameter keys (e.g. SLEEP's
// "duration" alongside CPU's "iterations") needs all of those keys present
// in that one map.
type mixFactory struct {
	mix       *TaskMix
	factories map[string]tasks.Factory
}

// newMixFactory builds one underlying factory per task type named in mix
// via registry.Build, validating params against each type up front so a
// misconfigured mix fails at scenario start rather than on some later
// invocation.
func newMixFactory(registry *tasks.Registry, mix *TaskMix, params map[string]string) (*mixFactory, error) {
	taskTypes := mix.TaskTypes()
	factories := make(map[string]tasks.Factory, len(taskTypes))
	for _, taskType := range taskTypes {
		f, err := registry.Build(taskType, params)
		if err != nil {
			return nil, err
		}
		factories[taskType] = f
	}
	return &mixFactory{mix: mix, factories: factories}, nil
}

// New implements tasks.Factory.
func (f *mixFactory) New() tasks.Task {
	return f.factories[f.mix.Select()].New()
}
