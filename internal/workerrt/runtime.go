// Package workerrt implements the worker runtime: a process that hosts one
// local executor.Executor and exposes it over net/rpc to a controller,
// with each RPC method taking a pointer-args, pointer-reply pair.
package workerrt

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"go.uber.org/zap"

	"vajraedge/internal/config"
	"vajraedge/internal/executor"
	"vajraedge/internal/rpcapi"
	"vajraedge/internal/tasks"
	"vajraedge/internal/types"
)

// Runtime hosts one local executor and serves the worker-side RPC methods
// (AssignTask, StopTest) against it.
type Runtime struct {
	cfg      config.WorkerConfig
	executor *executor.Executor
	logger   *zap.Logger

	mu          sync.Mutex
	assignments map[string]types.TaskAssignment // testId -> assignment, for duplicate rejection
	listener    net.Listener
}

// New constructs a worker Runtime over a freshly built task registry and
// executor.
func New(cfg config.WorkerConfig, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := tasks.NewRegistry()
	if err := tasks.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("register builtin tasks: %w", err)
	}

	return &Runtime{
		cfg:         cfg,
		executor:    executor.New(registry, nil, logger),
		logger:      logger,
		assignments: make(map[string]types.TaskAssignment),
	}, nil
}

// Serve registers the Worker RPC service under rpcapi.WorkerServiceName and
// accepts connections on cfg.RPCPort until ctx is cancelled.
func (r *Runtime) Serve(ctx context.Context) error {
	server := rpc.NewServer()
	if err := server.RegisterName(rpcapi.WorkerServiceName, r); err != nil {
		return fmt.Errorf("register worker rpc service: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.RPCPort))
	if err != nil {
		return fmt.Errorf("listen on worker rpc port %d: %w", r.cfg.RPCPort, err)
	}
	r.listener = listener

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	r.logger.Info("worker rpc server listening", zap.Int("port", r.cfg.RPCPort))
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				r.logger.Warn("worker rpc accept failed", zap.Error(err))
				return err
			}
		}
		go server.ServeConn(conn)
	}
}

// AssignTask launches a locally-scoped test via the embedded executor.
func (r *Runtime) AssignTask(args *types.TaskAssignment, reply *rpcapi.TaskAssignmentResponse) error {
	r.mu.Lock()
	if _, exists := r.assignments[args.TestID]; exists {
		r.mu.Unlock()
		*reply = rpcapi.TaskAssignmentResponse{
			Accepted:  false,
			Message:   "duplicate assignment for testId " + args.TestID,
			ErrorCode: rpcapi.AssignmentErrorDuplicateAssignment,
		}
		return nil
	}
	r.assignments[args.TestID] = *args
	r.mu.Unlock()

	cfg := types.TestConfig{
		TestID:              args.TestID,
		Mode:                types.ModeRateLimited,
		StartingConcurrency: args.MaxConcurrency,
		MaxConcurrency:      args.MaxConcurrency,
		RampStrategyType:    args.RampConfig.Type,
		RampStep:            args.RampConfig.Step,
		RampIntervalSeconds: args.RampConfig.IntervalSeconds,
		RampDurationSeconds: args.RampConfig.DurationSeconds,
		TestDurationSeconds: uint32(args.DurationSeconds),
		MaxTpsLimit:         args.TargetTps,
		TaskType:            args.TaskType,
		TaskParameters:      args.Parameters,
	}
	if cfg.RampStrategyType == "" {
		cfg.RampStrategyType = types.RampLinear
		cfg.RampDurationSeconds = 1
	}
	if cfg.StartingConcurrency == 0 {
		cfg.StartingConcurrency = 1
	}

	if _, err := r.executor.Start(context.Background(), cfg, true); err != nil {
		r.mu.Lock()
		delete(r.assignments, args.TestID)
		r.mu.Unlock()
		*reply = rpcapi.TaskAssignmentResponse{
			Accepted:  false,
			Message:   err.Error(),
			ErrorCode: rpcapi.AssignmentErrorInvalidConfig,
		}
		return nil
	}

	*reply = rpcapi.TaskAssignmentResponse{Accepted: true, Message: "assigned"}
	return nil
}

// StopTest stops the local test for args.TestID.
func (r *Runtime) StopTest(args *rpcapi.StopRequest, reply *rpcapi.StopResponse) error {
	if err := r.executor.Stop(args.TestID, args.Graceful); err != nil {
		*reply = rpcapi.StopResponse{Stopped: false, Message: err.Error()}
		return nil
	}
	*reply = rpcapi.StopResponse{Stopped: true, Message: "stopping"}
	return nil
}

// Metrics returns the most recent MetricsSnapshot for testId, used by the
// metrics-stream client loop.
func (r *Runtime) Metrics(testID string) (types.MetricsSnapshot, error) {
	return r.executor.Metrics(testID)
}

// Status returns the current TestExecution for testId.
func (r *Runtime) Status(testID string) (types.TestExecution, error) {
	return r.executor.Status(testID)
}

// ActiveTestIDs returns the testIds this worker currently holds an
// assignment for, used by the metrics-stream client to know what to report.
func (r *Runtime) ActiveTestIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.assignments))
	for id := range r.assignments {
		ids = append(ids, id)
	}
	return ids
}
