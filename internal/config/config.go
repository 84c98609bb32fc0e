// Package config loads the orchestrator's configuration from a YAML file
// (with ORCH_-prefixed environment variable overrides), following the
// viper-based Load pattern used across the wider codebase.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete orchestrator configuration.
type Config struct {
	Listen    string          `mapstructure:"listen" yaml:"listen"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Security  SecurityConfig  `mapstructure:"security" yaml:"security"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// SchedulerConfig holds the scheduling/failure-detection knobs from spec §6.
type SchedulerConfig struct {
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	HeartbeatTimeout     time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	FailureWindow        time.Duration `mapstructure:"failure_window" yaml:"failure_window"`
	DegradeAfterFailures int           `mapstructure:"degrade_after_failures" yaml:"degrade_after_failures"`
	TaskTimeoutDefault   time.Duration `mapstructure:"task_timeout_default" yaml:"task_timeout_default"`
	MaxRetriesDefault    int           `mapstructure:"max_retries_default" yaml:"max_retries_default"`
	LoadBalanceAlgorithm string        `mapstructure:"load_balance_algorithm" yaml:"load_balance_algorithm"`
	PendingQueueSoftCap  int           `mapstructure:"pending_queue_soft_cap" yaml:"pending_queue_soft_cap"`
	PollInterval         time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	DispatchTimeout      time.Duration `mapstructure:"dispatch_timeout" yaml:"dispatch_timeout"`
	ShutdownGrace        time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

// MetricsConfig holds retention/cleanup knobs.
type MetricsConfig struct {
	RetentionHours    int           `mapstructure:"retention_hours" yaml:"retention_hours"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	AggregateInterval time.Duration `mapstructure:"aggregate_interval" yaml:"aggregate_interval"`
}

// SecurityConfig holds the boundary opaque-key check; deliberately shallow
// per spec.md §1/§7 (no JWT, no RBAC — a static set of accepted keys).
type SecurityConfig struct {
	APIKeys []string `mapstructure:"api_keys" yaml:"api_keys"`
	RPS     float64  `mapstructure:"rps" yaml:"rps"`
	Burst   int      `mapstructure:"burst" yaml:"burst"`
}

// WebSocketConfig controls the optional broadcaster.
type WebSocketConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval" yaml:"broadcast_interval"`
}

// LoggingConfig controls the shared logrus logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration with every default from spec.md §6 applied.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Scheduler: SchedulerConfig{
			HeartbeatInterval:    30 * time.Second,
			HeartbeatTimeout:     30 * time.Second,
			FailureWindow:        120 * time.Second,
			DegradeAfterFailures: 3,
			TaskTimeoutDefault:   300 * time.Second,
			MaxRetriesDefault:    3,
			LoadBalanceAlgorithm: "weighted_round_robin",
			PendingQueueSoftCap:  0, // unbounded
			PollInterval:         200 * time.Millisecond,
			SweepInterval:        5 * time.Second,
			DispatchTimeout:      10 * time.Second,
			ShutdownGrace:        30 * time.Second,
		},
		Metrics: MetricsConfig{
			RetentionHours:    24,
			CleanupInterval:   time.Hour,
			AggregateInterval: time.Minute,
		},
		Security: SecurityConfig{
			APIKeys: nil,
			RPS:     50,
			Burst:   100,
		},
		WebSocket: WebSocketConfig{
			Enabled:           true,
			BroadcastInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from configFile (if non-empty) merged over
// Default(), with ORCH_-prefixed environment variables taking final
// precedence. A missing file is not an error — defaults apply.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("orchestrator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/orchestrator")
	}

	v.SetEnvPrefix("ORCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}
