package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Archive     ArchiveConfig     `toml:"archive"`
	Workers     WorkersConfig     `toml:"workers"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ArchiveConfig locates the raw output tree and the public results directory.
// Workers write per-item artefacts under <outputs>/<group-id>/; finished groups
// are bundled into <results>/<group-id>.zip.
type ArchiveConfig struct {
	OutputsDir string `toml:"outputs_dir"`
	ResultsDir string `toml:"results_dir"`
}

type WorkersConfig struct {
	Concurrency int `toml:"concurrency"` // Number of concurrent item executions
	QueueSize   int `toml:"queue_size"`  // Buffered item queue capacity
}

// WebSocketConfig contains configuration for the notification bus delivery path
type WebSocketConfig struct {
	BufferSize int `toml:"buffer_size"` // Bounded emit channel capacity
	// Throttle intervals for high-frequency events. Map of event name to duration string.
	// Example: {"task_item_finished": "250ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// MaintenanceConfig controls the retention reaper
type MaintenanceConfig struct {
	Schedule      string `toml:"schedule"`       // Cron schedule, default daily
	RetentionDays int    `toml:"retention_days"` // Archives older than this are reaped
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration defaults applied before any file
// or environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/sitebatch",
				ResetOnStartup: false,
			},
		},
		Archive: ArchiveConfig{
			OutputsDir: "./outputs",
			ResultsDir: "./results",
		},
		Workers: WorkersConfig{
			Concurrency: 4,
			QueueSize:   1024,
		},
		WebSocket: WebSocketConfig{
			BufferSize: 256,
		},
		Maintenance: MaintenanceConfig{
			Schedule:      "0 3 * * *", // daily at 03:00
			RetentionDays: 15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each file in order
// (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies SITEBATCH_* environment variables on top of the
// file configuration.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SITEBATCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("SITEBATCH_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("SITEBATCH_DB_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("SITEBATCH_OUTPUTS_DIR"); v != "" {
		config.Archive.OutputsDir = v
	}
	if v := os.Getenv("SITEBATCH_RESULTS_DIR"); v != "" {
		config.Archive.ResultsDir = v
	}
	if v := os.Getenv("SITEBATCH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Workers.Concurrency <= 0 {
		return fmt.Errorf("workers.concurrency must be positive, got %d", c.Workers.Concurrency)
	}
	if c.Maintenance.RetentionDays <= 0 {
		return fmt.Errorf("maintenance.retention_days must be positive, got %d", c.Maintenance.RetentionDays)
	}
	if _, err := cron.ParseStandard(c.Maintenance.Schedule); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", c.Maintenance.Schedule, err)
	}
	for event, interval := range c.WebSocket.ThrottleIntervals {
		if _, err := time.ParseDuration(interval); err != nil {
			return fmt.Errorf("invalid throttle interval for %s: %w", event, err)
		}
	}
	return nil
}

// Retention returns the maintenance retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Maintenance.RetentionDays) * 24 * time.Hour
}
