package tasks

import (
	"context"
	"strconv"
	"time"

	"vajraedge/internal/errors"
	"vajraedge/internal/types"
)

const (
	minSleepMs = 1
	maxSleepMs = 60_000
)

// sleepFactory constructs sleepTasks that simply idle for a fixed
// duration, used to model think-time or otherwise inert load.
type sleepFactory struct {
	duration time.Duration
}

func newSleepFactory(params map[string]string) (Factory, error) {
	raw, ok := params["duration"]
	if !ok || raw == "" {
		return nil, errors.Validation("sleep task requires a duration parameter")
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < minSleepMs || ms > maxSleepMs {
		return nil, errors.Validation("sleep task duration must be an integer in [1, 60000] ms")
	}
	return &sleepFactory{duration: time.Duration(ms) * time.Millisecond}, nil
}

// New implements Factory.
func (f *sleepFactory) New() Task {
	return &sleepTask{duration: f.duration}
}

type sleepTask struct {
	duration time.Duration
}

// Execute implements Task.
func (t *sleepTask) Execute(ctx context.Context, taskID uint64) (types.TaskResult, error) {
	start := time.Now()

	timer := time.NewTimer(t.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return types.TaskResult{
			TaskID:       taskID,
			Success:      false,
			LatencyNanos: uint64(time.Since(start).Nanoseconds()),
			ErrorKind:    "cancelled",
		}, nil
	}

	return types.TaskResult{
		TaskID:       taskID,
		Success:      true,
		LatencyNanos: uint64(time.Since(start).Nanoseconds()),
	}, nil
}
