package controller

import (
	"fmt"
	"net"
	"net/rpc"

	"go.uber.org/zap"

	"vajraedge/internal/rpcapi"
)

// RPCService exposes the controller-side RPC methods over net/rpc:
// RegisterWorker, Heartbeat, and StreamMetrics, each wrapping an internal,
// mutex-guarded Controller method with its own args/reply type.
type RPCService struct {
	controller *Controller
	logger     *zap.Logger
}

// RegisterWorker admits a worker into the registry and hands back the
// controller's advertised heartbeat/metrics cadence.
func (s *RPCService) RegisterWorker(args *rpcapi.RegisterWorkerArgs, reply *rpcapi.RegistrationResponse) error {
	s.controller.workers.Register(args.Info)
	s.logger.Info("worker registered", zap.String("workerId", args.Info.WorkerID), zap.String("host", args.Info.Host))

	*reply = rpcapi.RegistrationResponse{
		Accepted:                 true,
		Message:                  "registered",
		HeartbeatIntervalSeconds: uint32(s.controller.heartbeatInterval.Seconds()),
		MetricsIntervalSeconds:   uint32(s.controller.metricsInterval.Seconds()),
	}
	return nil
}

// Heartbeat records a worker's current load and liveness.
func (s *RPCService) Heartbeat(args *rpcapi.HeartbeatRequest, reply *rpcapi.HeartbeatResponse) error {
	ok := s.controller.workers.Heartbeat(args.WorkerID, args.CurrentLoad)
	if !ok {
		*reply = rpcapi.HeartbeatResponse{Healthy: false, Message: "unknown workerId, register first"}
		return nil
	}
	*reply = rpcapi.HeartbeatResponse{Healthy: true, Message: "ok"}
	return nil
}

// StreamMetrics records one worker's metrics snapshot for a test and folds
// its reported test status into that distributed test's overall status.
func (s *RPCService) StreamMetrics(args *rpcapi.StreamMetricsArgs, reply *rpcapi.MetricsAck) error {
	s.controller.aggregator.Record(args.Metrics)
	s.controller.recordWorkerStatus(args.Metrics.TestID, args.Metrics.WorkerID, args.Metrics.Status)
	*reply = rpcapi.MetricsAck{Received: true}
	return nil
}

// Serve registers the Controller RPC service and accepts connections on
// port until stop is closed.
func (c *Controller) Serve(port int, stop <-chan struct{}) error {
	service := &RPCService{controller: c, logger: c.logger}

	server := rpc.NewServer()
	if err := server.RegisterName(rpcapi.ControllerServiceName, service); err != nil {
		return fmt.Errorf("register controller rpc service: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on controller rpc port %d: %w", port, err)
	}

	go func() {
		<-stop
		listener.Close()
	}()

	c.logger.Info("controller rpc server listening", zap.Int("port", port))
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				c.logger.Warn("controller rpc accept failed", zap.Error(err))
				return err
			}
		}
		go server.ServeConn(conn)
	}
}
