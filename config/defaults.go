// =============================================================================
// 📋 CoordFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回完整默认配置
func DefaultConfig() *Config {
	return &Config{
		Engine:     DefaultEngineConfig(),
		Supervisor: DefaultSupervisorConfig(),
		Durable:    DefaultDurableConfig(),
		Health:     DefaultHealthConfig(),
		Snapshot:   DefaultSnapshotConfig(),
		Archive:    DefaultArchiveConfig(),
		Worker:     DefaultWorkerConfig(),
		Notify:     DefaultNotifyConfig(),
		Pool:       DefaultPoolConfig(),
		Metrics:    DefaultMetricsConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultEngineConfig 默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxSteps:   50,
		RunTimeout: 30 * time.Minute,
	}
}

// DefaultSupervisorConfig 默认监督者评分配置
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		WeightIntake:      0.3,
		WeightPlanning:    0.4,
		WeightInsight:     0.3,
		ThresholdComplete: 0.9,
		ThresholdInsight:  0.7,
		ThresholdPlanning: 0.5,
	}
}

// DefaultDurableConfig 默认重试配置
func DefaultDurableConfig() DurableConfig {
	return DurableConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		AttemptTimeout: 10 * time.Minute,
	}
}

// DefaultHealthConfig 默认健康监控配置
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Enabled:      true,
		Interval:     30 * time.Second,
		CheckTimeout: 5 * time.Second,
		Attempts:     2,
	}
}

// DefaultSnapshotConfig 默认快照存储配置
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Type:         "memory",
		BaseDir:      "./data/snapshots",
		KeepTerminal: false,
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "coordflow:",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "coordflow",
			Collection: "snapshots",
		},
	}
}

// DefaultArchiveConfig 默认归档配置
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled: false,
		Driver:  "sqlite",
		DSN:     "./data/archive.db",
		Pool: ArchivePoolConfig{
			MaxIdleConns:        5,
			MaxOpenConns:        25,
			ConnMaxLifetime:     time.Hour,
			ConnMaxIdleTime:     10 * time.Minute,
			HealthCheckInterval: 30 * time.Second,
		},
	}
}

// DefaultWorkerConfig 默认工作者配置
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		RateLimitRPS:   0,
		RateLimitBurst: 1,
	}
}

// DefaultNotifyConfig 默认通知配置
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		LogSink:   true,
		BusBuffer: 0,
	}
}

// DefaultPoolConfig 默认调度池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConcurrent: 32,
		QueueSize:     128,
		IdleTimeout:   60 * time.Second,
	}
}

// DefaultMetricsConfig 默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "coordflow",
		Addr:      ":9090",
	}
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "coordflow",
		SampleRate:   0.1,
	}
}
