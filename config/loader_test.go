package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.MaxSteps != 50 {
		t.Errorf("Engine.MaxSteps = %d, want 50", cfg.Engine.MaxSteps)
	}
	if cfg.Durable.MaxAttempts != 3 {
		t.Errorf("Durable.MaxAttempts = %d, want 3", cfg.Durable.MaxAttempts)
	}
	if cfg.Snapshot.Type != "memory" {
		t.Errorf("Snapshot.Type = %q, want memory", cfg.Snapshot.Type)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
engine:
  max_steps: 25
durable:
  max_attempts: 5
  initial_backoff: 500ms
snapshot:
  type: file
  base_dir: /tmp/snapshots
supervisor:
  threshold_complete: 0.95
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.MaxSteps != 25 {
		t.Errorf("Engine.MaxSteps = %d, want 25", cfg.Engine.MaxSteps)
	}
	if cfg.Durable.MaxAttempts != 5 {
		t.Errorf("Durable.MaxAttempts = %d, want 5", cfg.Durable.MaxAttempts)
	}
	if cfg.Durable.InitialBackoff != 500*time.Millisecond {
		t.Errorf("Durable.InitialBackoff = %v, want 500ms", cfg.Durable.InitialBackoff)
	}
	if cfg.Snapshot.Type != "file" || cfg.Snapshot.BaseDir != "/tmp/snapshots" {
		t.Errorf("unexpected snapshot config: %+v", cfg.Snapshot)
	}
	if cfg.Supervisor.ThresholdComplete != 0.95 {
		t.Errorf("Supervisor.ThresholdComplete = %v, want 0.95", cfg.Supervisor.ThresholdComplete)
	}
	// 未指定的字段保持默认值
	if cfg.Durable.Multiplier != 2.0 {
		t.Errorf("Durable.Multiplier = %v, want default 2.0", cfg.Durable.Multiplier)
	}
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
engine:
  max_steps: 25
log:
  level: warn
`)

	t.Setenv("COORDFLOW_ENGINE_MAX_STEPS", "10")
	t.Setenv("COORDFLOW_LOG_LEVEL", "debug")
	t.Setenv("COORDFLOW_DURABLE_ATTEMPT_TIMEOUT", "2m")
	t.Setenv("COORDFLOW_SUPERVISOR_WEIGHT_INTAKE", "0.5")
	t.Setenv("COORDFLOW_ARCHIVE_ENABLED", "true")
	t.Setenv("COORDFLOW_LOG_OUTPUT_PATHS", "stdout, /var/log/coordflow.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.MaxSteps != 10 {
		t.Errorf("Engine.MaxSteps = %d, want env override 10", cfg.Engine.MaxSteps)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Durable.AttemptTimeout != 2*time.Minute {
		t.Errorf("Durable.AttemptTimeout = %v, want 2m", cfg.Durable.AttemptTimeout)
	}
	if cfg.Supervisor.WeightIntake != 0.5 {
		t.Errorf("Supervisor.WeightIntake = %v, want 0.5", cfg.Supervisor.WeightIntake)
	}
	if !cfg.Archive.Enabled {
		t.Error("Archive.Enabled = false, want env override true")
	}
	want := []string{"stdout", "/var/log/coordflow.log"}
	if len(cfg.Log.OutputPaths) != 2 || cfg.Log.OutputPaths[0] != want[0] || cfg.Log.OutputPaths[1] != want[1] {
		t.Errorf("Log.OutputPaths = %v, want %v", cfg.Log.OutputPaths, want)
	}
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_ENGINE_MAX_STEPS", "7")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.MaxSteps != 7 {
		t.Errorf("Engine.MaxSteps = %d, want 7", cfg.Engine.MaxSteps)
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.MaxSteps != 50 {
		t.Errorf("Engine.MaxSteps = %d, want default 50", cfg.Engine.MaxSteps)
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "engine: [not a map")

	if _, err := NewLoader().WithConfigPath(path).Load(); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("COORDFLOW_ENGINE_MAX_STEPS", "not-a-number")

	if _, err := NewLoader().Load(); err == nil {
		t.Fatal("expected error for non-numeric env value")
	}
}

func TestLoader_ValidatorRejects(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		WithValidator(func(c *Config) error {
			c.Engine.MaxSteps = 0
			return nil
		}).
		Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	t.Setenv("COORDFLOW_LOG_LEVEL", "verbose")
	_, err = NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log level") {
		t.Errorf("error %q does not mention log level", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log level"},
		{"zero max steps", func(c *Config) { c.Engine.MaxSteps = 0 }, "max_steps"},
		{"zero attempts", func(c *Config) { c.Durable.MaxAttempts = 0 }, "max_attempts"},
		{"multiplier below one", func(c *Config) { c.Durable.Multiplier = 0.5 }, "multiplier"},
		{"negative weight", func(c *Config) { c.Supervisor.WeightIntake = -1 }, "weights"},
		{"unordered thresholds", func(c *Config) { c.Supervisor.ThresholdPlanning = 0.95 }, "thresholds"},
		{"bad snapshot type", func(c *Config) { c.Snapshot.Type = "etcd" }, "snapshot type"},
		{"archive without dsn", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.DSN = ""
		}, "archive dsn"},
		{"bad archive driver", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Driver = "oracle"
		}, "archive driver"},
		{"zero pool concurrency", func(c *Config) { c.Pool.MaxConcurrent = 0 }, "max_concurrent"},
		{"sample rate out of range", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoad_PanicsOnBadFile(t *testing.T) {
	path := writeConfigFile(t, "engine: [broken")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from MustLoad")
		}
	}()
	MustLoad(path)
}
