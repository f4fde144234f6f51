// =============================================================================
// 📦 CoordFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("COORDFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 CoordFlow 的完整配置结构
type Config struct {
	// Engine 工作流引擎配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Supervisor 监督者评分策略
	Supervisor SupervisorConfig `yaml:"supervisor" env:"SUPERVISOR"`

	// Durable 持久化执行（重试）配置
	Durable DurableConfig `yaml:"durable" env:"DURABLE"`

	// Health 工作者健康监控配置
	Health HealthConfig `yaml:"health" env:"HEALTH"`

	// Snapshot 运行快照存储配置
	Snapshot SnapshotConfig `yaml:"snapshot" env:"SNAPSHOT"`

	// Archive 终态运行归档配置
	Archive ArchiveConfig `yaml:"archive" env:"ARCHIVE"`

	// Worker 工作者调用配置
	Worker WorkerConfig `yaml:"worker" env:"WORKER"`

	// Notify 进度通知配置
	Notify NotifyConfig `yaml:"notify" env:"NOTIFY"`

	// Pool 运行调度池配置
	Pool PoolConfig `yaml:"pool" env:"POOL"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// EngineConfig 工作流引擎配置
type EngineConfig struct {
	// 单次运行的最大步数，超出后判定为失控循环
	MaxSteps int `yaml:"max_steps" env:"MAX_STEPS"`
	// 单次运行的墙钟超时（含暂停时间），0 表示不限制
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
}

// SupervisorConfig 监督者完成度评分的权重与阈值
type SupervisorConfig struct {
	WeightIntake   float64 `yaml:"weight_intake" env:"WEIGHT_INTAKE"`
	WeightPlanning float64 `yaml:"weight_planning" env:"WEIGHT_PLANNING"`
	WeightInsight  float64 `yaml:"weight_insight" env:"WEIGHT_INSIGHT"`

	ThresholdComplete float64 `yaml:"threshold_complete" env:"THRESHOLD_COMPLETE"`
	ThresholdInsight  float64 `yaml:"threshold_insight" env:"THRESHOLD_INSIGHT"`
	ThresholdPlanning float64 `yaml:"threshold_planning" env:"THRESHOLD_PLANNING"`
}

// DurableConfig 阶段执行的重试策略
type DurableConfig struct {
	// 最大尝试次数（含首次执行）
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	// 初始退避时间
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"INITIAL_BACKOFF"`
	// 最大退避时间
	MaxBackoff time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
	// 退避倍增因子
	Multiplier float64 `yaml:"multiplier" env:"MULTIPLIER"`
	// 是否添加随机抖动
	Jitter bool `yaml:"jitter" env:"JITTER"`
	// 单次尝试超时
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"ATTEMPT_TIMEOUT"`
}

// HealthConfig 工作者健康监控配置
type HealthConfig struct {
	// 是否启用周期健康检查
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 检查周期
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	// 单次探测超时
	CheckTimeout time.Duration `yaml:"check_timeout" env:"CHECK_TIMEOUT"`
	// 每轮探测尝试次数
	Attempts int `yaml:"attempts" env:"ATTEMPTS"`
}

// SnapshotConfig 运行快照存储配置
type SnapshotConfig struct {
	// 存储类型: memory, file, redis, mongo
	Type string `yaml:"type" env:"TYPE"`
	// 文件存储根目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// 终态运行是否保留快照
	KeepTerminal bool `yaml:"keep_terminal" env:"KEEP_TERMINAL"`
	// Redis 后端
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// Mongo 后端
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`
}

// RedisConfig Redis 快照后端配置
type RedisConfig struct {
	Host      string `yaml:"host" env:"HOST"`
	Port      int    `yaml:"port" env:"PORT"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	PoolSize  int    `yaml:"pool_size" env:"POOL_SIZE"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// MongoConfig Mongo 快照后端配置
type MongoConfig struct {
	URI        string `yaml:"uri" env:"URI"`
	Database   string `yaml:"database" env:"DATABASE"`
	Collection string `yaml:"collection" env:"COLLECTION"`
}

// ArchiveConfig 终态运行归档配置
type ArchiveConfig struct {
	// 是否启用归档
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 完整连接串
	DSN string `yaml:"dsn" env:"DSN"`
	// 连接池
	Pool ArchivePoolConfig `yaml:"pool" env:"POOL"`
}

// ArchivePoolConfig 归档库连接池配置
type ArchivePoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	// 后台探活间隔，0 表示关闭
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// WorkerConfig 工作者调用配置
type WorkerConfig struct {
	// 外部工作者限流（每秒请求数，0 表示不限流）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发额度
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// NotifyConfig 进度通知配置
type NotifyConfig struct {
	// 是否通过日志输出进度
	LogSink bool `yaml:"log_sink" env:"LOG_SINK"`
	// 事件总线缓冲大小（0 使用默认值）
	BusBuffer int `yaml:"bus_buffer" env:"BUS_BUFFER"`
	// 外部收集器 WebSocket 地址（空表示不推送）
	WebSocketURL string `yaml:"websocket_url" env:"WEBSOCKET_URL"`
}

// PoolConfig 运行调度池配置
type PoolConfig struct {
	// 最大并发运行数
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// 等待队列大小
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
	// 空闲工作协程回收时间
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用 Prometheus 指标
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// 指标 HTTP 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "COORDFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}

	if c.Engine.MaxSteps <= 0 {
		errs = append(errs, "engine max_steps must be positive")
	}
	if c.Durable.MaxAttempts <= 0 {
		errs = append(errs, "durable max_attempts must be positive")
	}
	if c.Durable.Multiplier < 1 {
		errs = append(errs, "durable multiplier must be >= 1")
	}

	if c.Supervisor.WeightIntake < 0 || c.Supervisor.WeightPlanning < 0 || c.Supervisor.WeightInsight < 0 {
		errs = append(errs, "supervisor weights must be non-negative")
	}
	if !(c.Supervisor.ThresholdPlanning <= c.Supervisor.ThresholdInsight &&
		c.Supervisor.ThresholdInsight <= c.Supervisor.ThresholdComplete) {
		errs = append(errs, "supervisor thresholds must be ordered planning <= insight <= complete")
	}

	switch c.Snapshot.Type {
	case "memory", "file", "redis", "mongo":
	default:
		errs = append(errs, fmt.Sprintf("invalid snapshot type %q", c.Snapshot.Type))
	}

	if c.Archive.Enabled {
		switch c.Archive.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("invalid archive driver %q", c.Archive.Driver))
		}
		if c.Archive.DSN == "" {
			errs = append(errs, "archive dsn is required when archive is enabled")
		}
	}

	if c.Pool.MaxConcurrent <= 0 {
		errs = append(errs, "pool max_concurrent must be positive")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
