package suite

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vajraedge/internal/executor"
	"vajraedge/internal/tasks"
	"vajraedge/internal/types"
)

func newTestExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	registry := tasks.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(registry))
	return executor.New(registry, nil, nil)
}

func sleepScenario(id string) TestScenario {
	return TestScenario{
		ScenarioID: id,
		Name:       id,
		Config: types.TestConfig{
			Mode:                types.ModeConcurrencyBased,
			StartingConcurrency: 1,
			MaxConcurrency:      1,
			RampStrategyType:    types.RampLinear,
			RampDurationSeconds: 1,
			TestDurationSeconds: 1,
			TaskType:            "SLEEP",
			TaskParameters:      map[string]string{"duration": "5"},
		},
	}
}

func TestSuiteExecutorRunSequentialCompletesAllScenarios(t *testing.T) {
	se := NewSuiteExecutor(newTestExecutor(t), nil)

	testSuite := TestSuite{
		SuiteID:       "suite-1",
		ExecutionMode: ModeSequential,
		Scenarios:     []TestScenario{sleepScenario("sc1"), sleepScenario("sc2")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := se.Run(ctx, testSuite, true)
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, result.Status)
	require.Len(t, result.Scenarios, 2)
	for _, sc := range result.Scenarios {
		require.Equal(t, types.StatusCompleted, sc.Status)
	}
}

func TestSuiteExecutorRunParallelCompletesAllScenarios(t *testing.T) {
	se := NewSuiteExecutor(newTestExecutor(t), nil)

	testSuite := TestSuite{
		SuiteID:       "suite-2",
		ExecutionMode: ModeParallel,
		Scenarios:     []TestScenario{sleepScenario("sc1"), sleepScenario("sc2"), sleepScenario("sc3")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := se.Run(ctx, testSuite, true)
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, result.Status)
	require.Len(t, result.Scenarios, 3)
}

func TestSuiteExecutorRunRejectsInvalidSuite(t *testing.T) {
	se := NewSuiteExecutor(newTestExecutor(t), nil)

	_, err := se.Run(context.Background(), TestSuite{SuiteID: "empty"}, true)
	require.Error(t, err)
}

func mixScenario(id string) TestScenario {
	mix, err := NewTaskMix(map[string]uint32{"SLEEP": 1, "CPU": 1})
	if err != nil {
		panic(err)
	}
	return TestScenario{
		ScenarioID: id,
		Name:       id,
		Config: types.TestConfig{
			Mode:                types.ModeConcurrencyBased,
			StartingConcurrency: 2,
			MaxConcurrency:      2,
			RampStrategyType:    types.RampLinear,
			RampDurationSeconds: 1,
			TestDurationSeconds: 1,
			TaskParameters:      map[string]string{"duration": "5", "iterations": "10"},
		},
		Mix: mix,
	}
}

func TestSuiteExecutorRunsScenarioWithTaskMixToCompletion(t *testing.T) {
	se := NewSuiteExecutor(newTestExecutor(t), nil)

	testSuite := TestSuite{
		SuiteID:       "suite-mix",
		ExecutionMode: ModeSequential,
		Scenarios:     []TestScenario{mixScenario("sc1")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := se.Run(ctx, testSuite, true)
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, result.Status)
	require.Equal(t, types.StatusCompleted, result.Scenarios[0].Status)
}

type countingFactory struct {
	calls *atomic.Int64
}

func (f *countingFactory) New() tasks.Task {
	f.calls.Add(1)
	return countingTask{}
}

type countingTask struct{}

func (countingTask) Execute(_ context.Context, taskID uint64) (types.TaskResult, error) {
	return types.TaskResult{TaskID: taskID, Success: true}, nil
}

func TestMixFactorySelectsAcrossConfiguredTypes(t *testing.T) {
	mix, err := NewTaskMix(map[string]uint32{"A": 1, "B": 1})
	require.NoError(t, err)

	var callsA, callsB atomic.Int64
	factory := &mixFactory{
		mix: mix,
		factories: map[string]tasks.Factory{
			"A": &countingFactory{calls: &callsA},
			"B": &countingFactory{calls: &callsB},
		},
	}

	for i := 0; i < 200; i++ {
		factory.New()
	}

	require.Greater(t, callsA.Load(), int64(0))
	require.Greater(t, callsB.Load(), int64(0))
}

func TestNewMixFactoryBuildsOneUnderlyingFactoryPerTaskType(t *testing.T) {
	registry := tasks.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(registry))

	mix, err := NewTaskMix(map[string]uint32{"SLEEP": 1, "CPU": 1})
	require.NoError(t, err)

	factory, err := newMixFactory(registry, mix, map[string]string{"duration": "5", "iterations": "10"})
	require.NoError(t, err)
	require.Len(t, factory.factories, 2)
	require.NotNil(t, factory.New())
}

func TestNewMixFactoryFailsWhenAnyTaskTypeRejectsParams(t *testing.T) {
	registry := tasks.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(registry))

	mix, err := NewTaskMix(map[string]uint32{"SLEEP": 1, "CPU": 1})
	require.NoError(t, err)

	_, err = newMixFactory(registry, mix, map[string]string{"duration": "5"})
	require.Error(t, err)
}

func TestSuiteExecutorWithCorrelationRunsToCompletion(t *testing.T) {
	se := NewSuiteExecutor(newTestExecutor(t), nil)

	testSuite := TestSuite{
		SuiteID:        "suite-3",
		ExecutionMode:  ModeSequential,
		UseCorrelation: true,
		Scenarios:      []TestScenario{sleepScenario("sc1")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := se.Run(ctx, testSuite, true)
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, result.Status)
}
