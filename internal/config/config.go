// Package config loads process-level configuration for the controller and
// worker binaries: defaults, then an optional file (JSON or YAML, picked by
// extension), then environment variable overrides, in that order.
//
// This is distinct from TestConfig/TestSuite bodies, which a control
// surface outside this module hands to the executor programmatically; this
// package only configures the controller/worker processes themselves.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ControllerConfig configures the cmd/controller process.
type ControllerConfig struct {
	RPCPort             int           `json:"rpc_port" yaml:"rpc_port"`
	MetricsPort         int           `json:"metrics_port" yaml:"metrics_port"`
	MaxConcurrentTests  int           `json:"max_concurrent_tests" yaml:"max_concurrent_tests"`
	MinWorkersDefault   int           `json:"min_workers_default" yaml:"min_workers_default"`
	HeartbeatInterval   time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	HeartbeatTimeout    time.Duration `json:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	WorkerRemoveTimeout time.Duration `json:"worker_remove_timeout" yaml:"worker_remove_timeout"`
	MetricsInterval     time.Duration `json:"metrics_interval" yaml:"metrics_interval"`
}

// WorkerConfig configures the cmd/worker process.
type WorkerConfig struct {
	ID                 string        `json:"id" yaml:"id"`
	RPCPort            int           `json:"rpc_port" yaml:"rpc_port"`
	MetricsPort        int           `json:"metrics_port" yaml:"metrics_port"`
	ControllerAddr     string        `json:"controller_addr" yaml:"controller_addr"`
	MaxCapacity        uint32        `json:"max_capacity" yaml:"max_capacity"`
	SupportedTaskTypes []string      `json:"supported_task_types" yaml:"supported_task_types"`
	MetricsInterval    time.Duration `json:"metrics_interval" yaml:"metrics_interval"`
	ReconnectMinDelay  time.Duration `json:"reconnect_min_delay" yaml:"reconnect_min_delay"`
	ReconnectMaxDelay  time.Duration `json:"reconnect_max_delay" yaml:"reconnect_max_delay"`
	MetricsBufferTTL   time.Duration `json:"metrics_buffer_ttl" yaml:"metrics_buffer_ttl"`
}

// LoadControllerConfig loads a ControllerConfig with sane defaults, an
// optional config file, and environment variable overrides.
func LoadControllerConfig(configPath string) (*ControllerConfig, error) {
	cfg := &ControllerConfig{
		RPCPort:             9090,
		MetricsPort:         9095,
		MaxConcurrentTests:  10,
		MinWorkersDefault:   1,
		HeartbeatInterval:   10 * time.Second,
		HeartbeatTimeout:    30 * time.Second,
		WorkerRemoveTimeout: 60 * time.Second,
		MetricsInterval:     5 * time.Second,
	}

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("load controller config: %w", err)
		}
	}

	if v := os.Getenv("VAJRAEDGE_CONTROLLER_RPC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.RPCPort = p
		}
	}
	if v := os.Getenv("VAJRAEDGE_CONTROLLER_METRICS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.MetricsPort = p
		}
	}
	if v := os.Getenv("VAJRAEDGE_MAX_CONCURRENT_TESTS"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentTests = p
		}
	}
	if v := os.Getenv("VAJRAEDGE_HEARTBEAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HeartbeatTimeout = d
		}
	}

	return cfg, nil
}

// LoadWorkerConfig loads a WorkerConfig with sane defaults, an optional
// config file, and environment variable overrides.
func LoadWorkerConfig(configPath string) (*WorkerConfig, error) {
	cfg := &WorkerConfig{
		ID:                 "worker-" + randomSuffix(),
		RPCPort:            9091,
		MetricsPort:        9096,
		ControllerAddr:     "localhost:9090",
		MaxCapacity:        1000,
		SupportedTaskTypes: []string{"HTTP_GET", "HTTP_POST", "HTTP", "SLEEP", "CPU"},
		MetricsInterval:    5 * time.Second,
		ReconnectMinDelay:  1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		MetricsBufferTTL:   60 * time.Second,
	}

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("load worker config: %w", err)
		}
	}

	if v := os.Getenv("VAJRAEDGE_WORKER_ID"); v != "" {
		cfg.ID = v
	}
	if v := os.Getenv("VAJRAEDGE_WORKER_RPC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.RPCPort = p
		}
	}
	if v := os.Getenv("VAJRAEDGE_CONTROLLER_ADDR"); v != "" {
		cfg.ControllerAddr = v
	}
	if v := os.Getenv("VAJRAEDGE_WORKER_MAX_CAPACITY"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.MaxCapacity = uint32(p)
		}
	}

	return cfg, nil
}

func loadFromFile(path string, out any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // a config file is optional
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode json config: %w", err)
		}
	}

	return nil
}

// randomSuffix generates a short, non-cryptographic worker-id suffix from
// the process start time so two workers started a moment apart don't
// collide when no explicit ID is configured.
func randomSuffix() string {
	return strconv.FormatInt(time.Now().UnixNano()%1_000_000, 36)
}
