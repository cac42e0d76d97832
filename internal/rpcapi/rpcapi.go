// Package rpcapi defines the wire messages and net/rpc service names for
// the controller<->worker protocol. It holds schema only; the method
// implementations live in internal/controller (the controller side) and
// internal/workerrt (the worker side), each call using a distinct
// pointer-args, pointer-reply pair.
package rpcapi

import "vajraedge/internal/types"

// Service names under which the two net/rpc services register themselves,
// matched against the method names below by net/rpc's "Service.Method"
// dispatch convention.
const (
	ControllerServiceName = "Controller"
	WorkerServiceName     = "Worker"
)

// Default listening ports for the controller and worker RPC servers.
const (
	DefaultControllerRPCPort = 9090
	DefaultWorkerRPCPort     = 9091
)

// RegistrationResponse answers a worker's RegisterWorker call.
type RegistrationResponse struct {
	Accepted                 bool
	Message                  string
	HeartbeatIntervalSeconds uint32
	MetricsIntervalSeconds   uint32
}

// HeartbeatStatus is the worker's self-reported status code carried on a
// HeartbeatRequest.
type HeartbeatStatus uint8

const (
	HeartbeatHealthy HeartbeatStatus = iota
	HeartbeatBusy
	HeartbeatDraining
)

// HeartbeatRequest is sent by a worker every heartbeatIntervalSeconds.
type HeartbeatRequest struct {
	WorkerID    string
	CurrentLoad uint32
	StatusCode  HeartbeatStatus
	TimestampMs int64
}

// HeartbeatResponse answers a worker's Heartbeat call.
type HeartbeatResponse struct {
	Healthy bool
	Message string
}

// TaskAssignmentErrorCode is the u8 error enum carried on a rejected
// TaskAssignmentResponse.
type TaskAssignmentErrorCode uint8

const (
	AssignmentErrorNone TaskAssignmentErrorCode = iota
	AssignmentErrorDuplicateAssignment
	AssignmentErrorUnsupportedTaskType
	AssignmentErrorInvalidConfig
)

// TaskAssignmentResponse answers a controller's AssignTask call.
type TaskAssignmentResponse struct {
	Accepted  bool
	Message   string
	ErrorCode TaskAssignmentErrorCode
}

// StopRequest instructs a worker to stop a locally running test.
type StopRequest struct {
	TestID   string
	Graceful bool
}

// StopResponse answers a controller's StopTest call.
type StopResponse struct {
	Stopped bool
	Message string
}

// MetricsAck answers one element of a worker's StreamMetrics stream.
type MetricsAck struct {
	Received bool
}

// RegisterWorkerArgs wraps the WorkerInfo announced by a worker on
// RegisterWorker; net/rpc requires a dedicated args type per method even
// when it carries an existing value type verbatim.
type RegisterWorkerArgs struct {
	Info types.WorkerInfo
}

// StreamMetricsArgs wraps one WorkerMetrics element of a worker's metrics
// stream.
type StreamMetricsArgs struct {
	Metrics types.WorkerMetrics
}
