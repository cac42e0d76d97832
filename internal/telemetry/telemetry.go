// Package telemetry wires the process-level prometheus metrics exposed by
// the controller and worker binaries: gauges and counters built via a
// constructor (instead of package globals) so tests can build an isolated
// registry per case, each registered once against its own
// prometheus.Registerer.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ControllerMetrics is the set of process-wide series the controller
// binary exposes, distinct from the per-test series internal/metrics
// registers and unregisters around each test's lifetime.
type ControllerMetrics struct {
	Registry *prometheus.Registry

	RegisteredWorkers  prometheus.Gauge
	DistributedTests   *prometheus.CounterVec
	AssignmentFailures prometheus.Counter
	RPCRequestsTotal   *prometheus.CounterVec
}

// NewControllerMetrics constructs and registers a fresh set of controller
// series on their own registry.
func NewControllerMetrics() *ControllerMetrics {
	registry := prometheus.NewRegistry()

	m := &ControllerMetrics{
		Registry: registry,
		RegisteredWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajraedge_registered_workers",
			Help: "Number of workers currently registered with the controller.",
		}),
		DistributedTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vajraedge_distributed_tests_total",
			Help: "Total distributed tests started, by final status.",
		}, []string{"status"}),
		AssignmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vajraedge_assignment_failures_total",
			Help: "Total task-assignment RPCs that failed or were rejected.",
		}),
		RPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vajraedge_controller_rpc_requests_total",
			Help: "Total controller-side RPC calls handled, by method and outcome.",
		}, []string{"method", "outcome"}),
	}

	registry.MustRegister(m.RegisteredWorkers, m.DistributedTests, m.AssignmentFailures, m.RPCRequestsTotal)
	return m
}

// WorkerMetrics is the set of process-wide series the worker binary
// exposes.
type WorkerMetrics struct {
	Registry *prometheus.Registry

	ActiveAssignments prometheus.Gauge
	HeartbeatsSent    prometheus.Counter
	ReconnectAttempts prometheus.Counter
}

// NewWorkerMetrics constructs and registers a fresh set of worker series
// on their own registry.
func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()

	m := &WorkerMetrics{
		Registry: registry,
		ActiveAssignments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajraedge_worker_active_assignments",
			Help: "Number of test assignments this worker currently holds.",
		}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vajraedge_worker_heartbeats_sent_total",
			Help: "Total heartbeats sent to the controller.",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vajraedge_worker_reconnect_attempts_total",
			Help: "Total reconnection attempts made to the controller.",
		}),
	}

	registry.MustRegister(m.ActiveAssignments, m.HeartbeatsSent, m.ReconnectAttempts)
	return m
}

// Handler returns an HTTP handler exposing registry in the text exposition
// format, for mounting under /metrics.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
