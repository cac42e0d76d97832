// Package types holds VajraEdge's shared data model: the value types that
// cross package boundaries (and, for the wire types, process boundaries)
// unchanged.
package types

import "time"

// TestMode selects how the concurrency controller interprets maxTpsLimit.
type TestMode string

const (
	ModeConcurrencyBased TestMode = "CONCURRENCY_BASED"
	ModeRateLimited      TestMode = "RATE_LIMITED"
)

// RampStrategyType names a built-in ramp strategy.
type RampStrategyType string

const (
	RampStep   RampStrategyType = "STEP"
	RampLinear RampStrategyType = "LINEAR"
)

// TestStatus is a TestExecution's position in its lifecycle state machine.
type TestStatus string

const (
	StatusPending    TestStatus = "PENDING"
	StatusRunning    TestStatus = "RUNNING"
	StatusRamping    TestStatus = "RAMPING"
	StatusSustaining TestStatus = "SUSTAINING"
	StatusStopping   TestStatus = "STOPPING"
	StatusCompleted  TestStatus = "COMPLETED"
	StatusFailed     TestStatus = "FAILED"
	StatusStopped    TestStatus = "STOPPED"
)

// TaskResult is an immutable record of one task invocation.
type TaskResult struct {
	TaskID         uint64
	Success        bool
	LatencyNanos   uint64
	ErrorKind      string // empty when Success is true
	BytesProcessed uint64
}

// LatencyStats summarizes a latency distribution in milliseconds.
type LatencyStats struct {
	P50Ms  float64
	P95Ms  float64
	P99Ms  float64
	MeanMs float64
	MinMs  float64
	MaxMs  float64
}

// MetricsSnapshot is a point-in-time, immutable view of a metrics
// collector (local or aggregated).
type MetricsSnapshot struct {
	TotalTasks        uint64
	SuccessfulTasks   uint64
	FailedTasks       uint64
	ActiveTasks       int32
	CurrentTps        float64
	LatencyStats      LatencyStats
	ErrorCountsByKind map[string]uint64
	TimestampMs       int64
}

// ErrorRate returns the derived failure percentage, 0 when TotalTasks is 0.
func (s MetricsSnapshot) ErrorRate() float64 {
	if s.TotalTasks == 0 {
		return 0
	}
	return float64(s.FailedTasks) / float64(s.TotalTasks) * 100
}

// TestConfig is the immutable, validated description of one test run.
type TestConfig struct {
	TestID              string
	Mode                TestMode
	StartingConcurrency uint32
	MaxConcurrency      uint32
	RampStrategyType    RampStrategyType
	RampStep            uint32
	RampIntervalSeconds uint32
	RampDurationSeconds uint32
	TestDurationSeconds uint32
	MaxTpsLimit         uint32 // 0 means unset
	TaskType            string
	TaskParameters      map[string]string
}

// RampEndSeconds returns the elapsed-seconds boundary after which the ramp
// is complete, used by the executor to distinguish RAMPING from SUSTAINING.
func (c TestConfig) RampEndSeconds() uint32 {
	if c.RampStrategyType == RampStep {
		step := max1(c.RampStep)
		return c.RampIntervalSeconds * ((c.MaxConcurrency - c.StartingConcurrency + step - 1) / step)
	}
	return c.RampDurationSeconds
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

// TestExecution is the mutable lifecycle record for one test.
type TestExecution struct {
	TestID        string
	Config        TestConfig
	Status        TestStatus
	StartedAt     time.Time
	CompletedAt   time.Time
	FailureReason string
}

// WorkerStatus is a registered worker's health as seen by the controller.
type WorkerStatus string

const (
	WorkerHealthy     WorkerStatus = "HEALTHY"
	WorkerUnhealthy   WorkerStatus = "UNHEALTHY"
	WorkerUnreachable WorkerStatus = "UNREACHABLE"
	WorkerDraining    WorkerStatus = "DRAINING"
)

// WorkerInfo is the controller's registry entry for one worker.
type WorkerInfo struct {
	WorkerID           string
	Host               string
	RPCPort            uint16
	MaxCapacity        uint32
	CurrentLoad        uint32
	Status             WorkerStatus
	LastHeartbeatMs    int64
	SupportedTaskTypes map[string]struct{}
}

// AvailableCapacity returns MaxCapacity-CurrentLoad, floored at zero.
func (w WorkerInfo) AvailableCapacity() uint32 {
	if w.CurrentLoad >= w.MaxCapacity {
		return 0
	}
	return w.MaxCapacity - w.CurrentLoad
}

// RampConfig is the wire representation of a ramp strategy's parameters,
// embedded in a TaskAssignment.
type RampConfig struct {
	Type            RampStrategyType
	Step            uint32
	IntervalSeconds uint32
	DurationSeconds uint32
}

// TaskAssignment is the controller->worker instruction to run a fraction
// of a distributed test.
type TaskAssignment struct {
	TestID          string
	TaskType        string
	Parameters      map[string]string
	TargetTps       uint32
	DurationSeconds uint64
	MaxConcurrency  uint32
	RampConfig      RampConfig
}

// WorkerMetrics is a MetricsSnapshot tagged with its origin, streamed from
// worker to controller. Status carries the worker's own view of testId's
// lifecycle state, piggybacked on the existing metrics stream so the
// controller can fold per-worker COMPLETED/FAILED transitions into a
// distributed test's overall status without a second RPC channel.
type WorkerMetrics struct {
	WorkerID string
	TestID   string
	Snapshot MetricsSnapshot
	Status   TestStatus
}
