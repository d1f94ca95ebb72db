package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.Server.Port)
	}
	if config.Workers.Concurrency != 4 {
		t.Errorf("Expected default concurrency 4, got %d", config.Workers.Concurrency)
	}
	if config.Maintenance.RetentionDays != 15 {
		t.Errorf("Expected default retention 15 days, got %d", config.Maintenance.RetentionDays)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
	if config.Retention() != 15*24*time.Hour {
		t.Errorf("Expected retention duration 360h, got %v", config.Retention())
	}
}

func TestLoadFromFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "sitebatch.toml")
	content := `
[server]
port = 9090

[workers]
concurrency = 2

[maintenance]
schedule = "30 2 * * *"
retention_days = 7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.Server.Port)
	}
	if config.Workers.Concurrency != 2 {
		t.Errorf("Expected concurrency 2, got %d", config.Workers.Concurrency)
	}
	if config.Maintenance.RetentionDays != 7 {
		t.Errorf("Expected retention 7, got %d", config.Maintenance.RetentionDays)
	}
	// Untouched sections keep their defaults
	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host, got %s", config.Server.Host)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	if _, err := LoadFromFiles("/nonexistent/sitebatch.toml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"zero concurrency", func(c *Config) { c.Workers.Concurrency = 0 }},
		{"zero retention", func(c *Config) { c.Maintenance.RetentionDays = 0 }},
		{"bad cron schedule", func(c *Config) { c.Maintenance.Schedule = "not a schedule" }},
		{"bad throttle interval", func(c *Config) {
			c.WebSocket.ThrottleIntervals = map[string]string{"task_item_finished": "soon"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := DefaultConfig()
	ApplyFlagOverrides(config, 7070, "0.0.0.0")
	if config.Server.Port != 7070 || config.Server.Host != "0.0.0.0" {
		t.Errorf("Expected flag overrides applied, got %s:%d", config.Server.Host, config.Server.Port)
	}

	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 7070 || config.Server.Host != "0.0.0.0" {
		t.Error("Expected zero-value flags to leave config untouched")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SITEBATCH_PORT", "6060")
	t.Setenv("SITEBATCH_LOG_LEVEL", "debug")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.Server.Port != 6060 {
		t.Errorf("Expected env port 6060, got %d", config.Server.Port)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected env log level debug, got %s", config.Logging.Level)
	}
}
