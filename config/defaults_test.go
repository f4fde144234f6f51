package config

import (
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestDefaultDurableConfig(t *testing.T) {
	cfg := DefaultDurableConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", cfg.MaxBackoff)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", cfg.Multiplier)
	}
	if !cfg.Jitter {
		t.Error("Jitter = false, want true")
	}
	if cfg.AttemptTimeout != 10*time.Minute {
		t.Errorf("AttemptTimeout = %v, want 10m", cfg.AttemptTimeout)
	}
}

func TestDefaultSupervisorConfig_WeightsSumToOne(t *testing.T) {
	cfg := DefaultSupervisorConfig()

	sum := cfg.WeightIntake + cfg.WeightPlanning + cfg.WeightInsight
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("weights sum to %v, want 1.0", sum)
	}
	if !(cfg.ThresholdPlanning < cfg.ThresholdInsight && cfg.ThresholdInsight < cfg.ThresholdComplete) {
		t.Errorf("thresholds not strictly ordered: %+v", cfg)
	}
}

func TestDefaultSnapshotConfig(t *testing.T) {
	cfg := DefaultSnapshotConfig()

	if cfg.Type != "memory" {
		t.Errorf("Type = %q, want memory", cfg.Type)
	}
	if cfg.Redis.Port != 6379 || cfg.Redis.KeyPrefix != "coordflow:" {
		t.Errorf("unexpected redis defaults: %+v", cfg.Redis)
	}
	if cfg.Mongo.Database != "coordflow" {
		t.Errorf("Mongo.Database = %q, want coordflow", cfg.Mongo.Database)
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()

	if cfg.MaxConcurrent != 32 {
		t.Errorf("MaxConcurrent = %d, want 32", cfg.MaxConcurrent)
	}
	if cfg.QueueSize != 128 {
		t.Errorf("QueueSize = %d, want 128", cfg.QueueSize)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
}

func TestDefaultArchiveConfig_DisabledByDefault(t *testing.T) {
	cfg := DefaultArchiveConfig()

	if cfg.Enabled {
		t.Error("archive should be disabled by default")
	}
	if cfg.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Driver)
	}
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()

	if cfg.Enabled {
		t.Error("telemetry should be disabled by default")
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want localhost:4317", cfg.OTLPEndpoint)
	}
	if cfg.SampleRate != 0.1 {
		t.Errorf("SampleRate = %v, want 0.1", cfg.SampleRate)
	}
}
