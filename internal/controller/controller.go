package controller

import (
	"fmt"
	"net/rpc"
	"sync"
	"time"

	"go.uber.org/zap"

	"vajraedge/internal/errors"
	"vajraedge/internal/rpcapi"
	"vajraedge/internal/types"
)

// Controller is the top-level controller-side coordinator, composing the
// worker manager, task distributor, and metrics aggregator over one shared
// worker registry. It does not run an executor itself — all task execution
// happens on workers; the controller only coordinates.
type Controller struct {
	workers      *WorkerManager
	distributor  *Distributor
	aggregator   *Aggregator
	logger       *zap.Logger
	dialWorkerFn func(host string, port uint16) (*rpc.Client, error)

	heartbeatInterval time.Duration
	metricsInterval   time.Duration

	mu    sync.Mutex
	tests map[string]*distributedTest
}

type distributedTest struct {
	testID         string
	status         types.TestStatus
	workers        []string
	taskType       string
	workerStatuses map[string]types.TestStatus
}

// New constructs a Controller. heartbeatInterval/metricsInterval are the
// values advertised to workers on registration; minWorkers configures the
// distributor's minimum-worker floor.
func New(heartbeatTimeout, workerRemoveTimeout, heartbeatInterval, metricsInterval time.Duration, minWorkers int, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = 10 * time.Second
	}
	if metricsInterval <= 0 {
		metricsInterval = 5 * time.Second
	}

	workers := NewWorkerManager(heartbeatTimeout, workerRemoveTimeout, logger)
	return &Controller{
		workers:           workers,
		distributor:       NewDistributor(workers, minWorkers),
		aggregator:        NewAggregator(metricsInterval),
		logger:            logger,
		dialWorkerFn:      dialWorker,
		heartbeatInterval: heartbeatInterval,
		metricsInterval:   metricsInterval,
		tests:             make(map[string]*distributedTest),
	}
}

func dialWorker(host string, port uint16) (*rpc.Client, error) {
	return rpc.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
}

// StartSweep begins the worker manager's background health timer.
func (c *Controller) StartSweep() { c.workers.StartSweep() }

// StopSweep halts the worker manager's background health timer.
func (c *Controller) StopSweep() { c.workers.Stop() }

// StartDistributedTest plans a capacity-proportional allocation across
// healthy workers supporting taskType, then emits AssignTask to each chosen
// worker. If any assignment fails, the already-assigned workers are
// best-effort stopped and the whole request fails with <AssignmentFailed>.
func (c *Controller) StartDistributedTest(testID, taskType string, targetTps uint32, durationSeconds uint64, maxConcurrencyPerWorker uint32, ramp types.RampConfig, parameters map[string]string) error {
	plan, err := c.distributor.Plan(taskType, targetTps)
	if err != nil {
		return err
	}

	assigned := make([]types.WorkerInfo, 0, len(plan))
	for _, d := range plan {
		client, dialErr := c.dialWorkerFn(d.Worker.Host, d.Worker.RPCPort)
		if dialErr != nil {
			c.rollback(testID, assigned)
			return errors.Wrap(errors.CodeCoordination,
				fmt.Sprintf("dial worker %s failed", d.Worker.WorkerID), dialErr)
		}

		assignment := types.TaskAssignment{
			TestID:          testID,
			TaskType:        taskType,
			Parameters:      parameters,
			TargetTps:       d.TargetTps,
			DurationSeconds: durationSeconds,
			MaxConcurrency:  maxConcurrencyPerWorker,
			RampConfig:      ramp,
		}

		var reply rpcapi.TaskAssignmentResponse
		callErr := client.Call(rpcapi.WorkerServiceName+".AssignTask", &assignment, &reply)
		client.Close()

		if callErr != nil || !reply.Accepted {
			c.rollback(testID, assigned)
			msg := reply.Message
			if callErr != nil {
				msg = callErr.Error()
			}
			return errors.Coordination(fmt.Sprintf("assignment to worker %s failed: %s", d.Worker.WorkerID, msg))
		}

		assigned = append(assigned, d.Worker)
	}

	workerIDs := make([]string, len(assigned))
	for i, w := range assigned {
		workerIDs[i] = w.WorkerID
	}

	c.mu.Lock()
	c.tests[testID] = &distributedTest{
		testID:         testID,
		status:         types.StatusRunning,
		workers:        workerIDs,
		taskType:       taskType,
		workerStatuses: make(map[string]types.TestStatus),
	}
	c.mu.Unlock()

	return nil
}

// rollback best-effort stops every already-assigned worker for testID.
func (c *Controller) rollback(testID string, assigned []types.WorkerInfo) {
	for _, w := range assigned {
		client, err := c.dialWorkerFn(w.Host, w.RPCPort)
		if err != nil {
			continue
		}
		var reply rpcapi.StopResponse
		_ = client.Call(rpcapi.WorkerServiceName+".StopTest", &rpcapi.StopRequest{TestID: testID, Graceful: false}, &reply)
		client.Close()
	}
}

// StopDistributedTest issues StopTest to every worker holding testID.
func (c *Controller) StopDistributedTest(testID string, graceful bool) error {
	c.mu.Lock()
	dt, ok := c.tests[testID]
	c.mu.Unlock()
	if !ok {
		return errors.ErrNotFound
	}

	for _, workerID := range dt.workers {
		w, ok := c.workers.Get(workerID)
		if !ok {
			continue
		}
		client, err := c.dialWorkerFn(w.Host, w.RPCPort)
		if err != nil {
			continue
		}
		var reply rpcapi.StopResponse
		_ = client.Call(rpcapi.WorkerServiceName+".StopTest", &rpcapi.StopRequest{TestID: testID, Graceful: graceful}, &reply)
		client.Close()
	}

	c.mu.Lock()
	dt.status = types.StatusStopped
	c.mu.Unlock()
	return nil
}

// recordWorkerStatus folds one worker's locally observed test status into
// the distributed test's overall status: COMPLETED once every assigned
// worker reports COMPLETED, FAILED as soon as any worker reports FAILED. A
// terminal distributed status is sticky; reports arriving afterward are
// ignored.
func (c *Controller) recordWorkerStatus(testID, workerID string, status types.TestStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dt, ok := c.tests[testID]
	if !ok || isDistributedTerminal(dt.status) {
		return
	}

	dt.workerStatuses[workerID] = status

	if status == types.StatusFailed {
		dt.status = types.StatusFailed
		return
	}

	if allWorkersCompleted(dt) {
		dt.status = types.StatusCompleted
	}
}

func allWorkersCompleted(dt *distributedTest) bool {
	if len(dt.workerStatuses) < len(dt.workers) {
		return false
	}
	for _, id := range dt.workers {
		if dt.workerStatuses[id] != types.StatusCompleted {
			return false
		}
	}
	return true
}

func isDistributedTerminal(status types.TestStatus) bool {
	switch status {
	case types.StatusCompleted, types.StatusFailed, types.StatusStopped:
		return true
	default:
		return false
	}
}

// Status returns the current distributed-test status for testID.
func (c *Controller) Status(testID string) (types.TestStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dt, ok := c.tests[testID]
	if !ok {
		return "", false
	}
	return dt.status, true
}

// DistributedMetrics returns the aggregated MetricsSnapshot for testID.
func (c *Controller) DistributedMetrics(testID string) types.MetricsSnapshot {
	return c.aggregator.Aggregate(testID)
}

// Workers returns the registry's WorkerManager for diagnostic access.
func (c *Controller) Workers() *WorkerManager { return c.workers }
