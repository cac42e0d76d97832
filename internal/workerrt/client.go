package workerrt

import (
	"context"
	"net"
	"net/rpc"
	"time"

	"go.uber.org/zap"

	"vajraedge/internal/config"
	"vajraedge/internal/rpcapi"
	"vajraedge/internal/tasks"
	"vajraedge/internal/types"
)

// Client drives this worker's outbound connection to its controller:
// registration, periodic heartbeats, and the metrics-push stream. Workers
// never receive unsolicited connections from the controller beyond the RPC
// calls the controller makes against Runtime; Client is the only thing that
// dials out.
type Client struct {
	cfg     config.WorkerConfig
	runtime *Runtime
	logger  *zap.Logger

	heartbeatInterval time.Duration
	metricsInterval   time.Duration
}

// NewClient constructs a Client for runtime, dialing controllerAddr.
func NewClient(cfg config.WorkerConfig, runtime *Runtime, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:               cfg,
		runtime:           runtime,
		logger:            logger,
		heartbeatInterval: 10 * time.Second,
		metricsInterval:   cfg.MetricsInterval,
	}
}

// Run connects to the controller, registers, and then drives heartbeat and
// metrics-stream loops until ctx is cancelled, reconnecting with
// exponential backoff (starting at ReconnectMinDelay, capped at
// ReconnectMaxDelay) whenever the connection is lost.
func (c *Client) Run(ctx context.Context) {
	delay := c.cfg.ReconnectMinDelay
	if delay <= 0 {
		delay = time.Second
	}

	var buffered []types.WorkerMetrics
	bufferSince := time.Time{}

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := net.Dial("tcp", c.cfg.ControllerAddr)
		if err != nil {
			c.logger.Warn("dial controller failed, backing off", zap.Error(err), zap.Duration("delay", delay))
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextBackoff(delay, c.cfg.ReconnectMaxDelay)
			continue
		}
		client := rpc.NewClient(conn)

		localHost := c.cfg.ID
		if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
			localHost = addr.IP.String()
		}

		resp, err := c.register(client, localHost)
		if err != nil || !resp.Accepted {
			client.Close()
			c.logger.Warn("registration rejected, backing off", zap.Error(err), zap.Duration("delay", delay))
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextBackoff(delay, c.cfg.ReconnectMaxDelay)
			continue
		}

		delay = c.cfg.ReconnectMinDelay
		if delay <= 0 {
			delay = time.Second
		}
		if resp.HeartbeatIntervalSeconds > 0 {
			c.heartbeatInterval = time.Duration(resp.HeartbeatIntervalSeconds) * time.Second
		}
		if resp.MetricsIntervalSeconds > 0 {
			c.metricsInterval = time.Duration(resp.MetricsIntervalSeconds) * time.Second
		}

		if len(buffered) > 0 && time.Since(bufferSince) <= c.cfg.MetricsBufferTTL {
			for _, m := range buffered {
				c.sendMetrics(client, m)
			}
		}
		buffered = nil

		lost := c.session(ctx, client, &buffered, &bufferSince)
		client.Close()
		if !lost {
			return // ctx cancelled
		}
	}
}

// register sends RegisterWorker for this worker's advertised identity. host
// is the local address the dial to the controller was made from, used so
// the controller knows where to reach this worker's own RPC port back.
func (c *Client) register(client *rpc.Client, host string) (rpcapi.RegistrationResponse, error) {
	info := types.WorkerInfo{
		WorkerID:           c.cfg.ID,
		Host:               host,
		RPCPort:            uint16(c.cfg.RPCPort),
		MaxCapacity:        c.cfg.MaxCapacity,
		SupportedTaskTypes: supportedTaskTypeSet(c.cfg.SupportedTaskTypes),
	}

	var reply rpcapi.RegistrationResponse
	args := rpcapi.RegisterWorkerArgs{Info: info}
	err := client.Call(rpcapi.ControllerServiceName+".RegisterWorker", &args, &reply)
	return reply, err
}

// session runs the heartbeat and metrics-stream loops against one live
// connection, returning true if the connection was lost (caller should
// reconnect) and false if ctx was cancelled (caller should exit).
func (c *Client) session(ctx context.Context, client *rpc.Client, buffered *[]types.WorkerMetrics, bufferSince *time.Time) bool {
	heartbeatTicker := time.NewTicker(c.heartbeatInterval)
	defer heartbeatTicker.Stop()
	metricsTicker := time.NewTicker(c.metricsInterval)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false

		case <-heartbeatTicker.C:
			req := rpcapi.HeartbeatRequest{
				WorkerID:    c.cfg.ID,
				CurrentLoad: uint32(len(c.runtime.ActiveTestIDs())),
				StatusCode:  rpcapi.HeartbeatHealthy,
				TimestampMs: time.Now().UnixMilli(),
			}
			var resp rpcapi.HeartbeatResponse
			if err := client.Call(rpcapi.ControllerServiceName+".Heartbeat", &req, &resp); err != nil {
				c.logger.Warn("heartbeat failed, connection lost", zap.Error(err))
				return true
			}

		case <-metricsTicker.C:
			for _, testID := range c.runtime.ActiveTestIDs() {
				snapshot, err := c.runtime.Metrics(testID)
				if err != nil {
					continue
				}
				status := types.StatusRunning
				if exec, err := c.runtime.Status(testID); err == nil {
					status = exec.Status
				}
				wm := types.WorkerMetrics{WorkerID: c.cfg.ID, TestID: testID, Snapshot: snapshot, Status: status}
				if err := c.sendMetrics(client, wm); err != nil {
					if *bufferSince == (time.Time{}) {
						*bufferSince = time.Now()
					}
					if time.Since(*bufferSince) <= c.cfg.MetricsBufferTTL {
						*buffered = append(*buffered, wm)
					}
					return true
				}
			}
		}
	}
}

func (c *Client) sendMetrics(client *rpc.Client, wm types.WorkerMetrics) error {
	var ack rpcapi.MetricsAck
	args := rpcapi.StreamMetricsArgs{Metrics: wm}
	return client.Call(rpcapi.ControllerServiceName+".StreamMetrics", &args, &ack)
}

func supportedTaskTypeSet(taskTypes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(taskTypes))
	for _, t := range taskTypes {
		set[tasks.Canonicalize(t)] = struct{}{}
	}
	return set
}

// sleepOrDone waits for d or ctx cancellation, returning false if ctx was
// cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	if max <= 0 {
		max = 30 * time.Second
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}
