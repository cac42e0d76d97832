// Command worker runs a VajraEdge worker process: it registers with a
// controller, accepts task assignments, runs them through a local
// executor, and streams metrics back. Construction proceeds in dependency
// order: config, then the prometheus metrics registry, then the worker
// runtime (task registry and local executor), then the RPC server, then
// the controller client last so it
// only starts dialing once everything it depends on is live.
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

	"go.uber.org/zap"

	"vajraedge/internal/config"
	"vajraedge/internal/telemetry"
	"vajraedge/internal/workerrt"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML worker config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadWorkerConfig(*configPath)
	if err != nil {
		logger.Fatal("load worker config", zap.Error(err))
	}

	metrics := telemetry.NewWorkerMetrics()

	runtime, err := workerrt.New(*cfg, logger)
	if err != nil {
		logger.Fatal("construct worker runtime", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := runtime.Serve(ctx); err != nil {
			logger.Error("worker rpc server exited", zap.Error(err))
		}
	}()

	client := workerrt.NewClient(*cfg, runtime, logger)
	go client.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(metrics.Registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker http server exited", zap.Error(err))
		}
	}()

	logger.Info("worker started",
		zap.String("id", cfg.ID), zap.Int("rpcPort", cfg.RPCPort), zap.String("controllerAddr", cfg.ControllerAddr))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down worker")
	cancel()
	_ = httpServer.Close()
}
