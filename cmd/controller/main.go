// Command controller runs the VajraEdge controller process: it accepts
// worker registrations, distributes load across them, and aggregates their
// reported metrics. Construction proceeds in dependency order: config,
// then the controller coordinator, then the HTTP and RPC servers launched
// as goroutines, with a signal-driven graceful shutdown tying them
// together.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vajraedge/internal/config"
	"vajraedge/internal/controller"
	"vajraedge/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML controller config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadControllerConfig(*configPath)
	if err != nil {
		logger.Fatal("load controller config", zap.Error(err))
	}

	metrics := telemetry.NewControllerMetrics()

	coord := controller.New(
		cfg.HeartbeatTimeout, cfg.WorkerRemoveTimeout,
		cfg.HeartbeatInterval, cfg.MetricsInterval,
		cfg.MinWorkersDefault, logger,
	)
	coord.StartSweep()
	defer coord.StopSweep()

	rpcStop := make(chan struct{})
	go func() {
		if err := coord.Serve(cfg.RPCPort, rpcStop); err != nil {
			logger.Error("controller rpc server exited", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(metrics.Registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("controller http server exited", zap.Error(err))
		}
	}()

	logger.Info("controller started",
		zap.Int("rpcPort", cfg.RPCPort), zap.Int("metricsPort", cfg.MetricsPort))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down controller")
	close(rpcStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
}
