// =============================================================================
// Package coordflow — One-Line System Construction
// =============================================================================
// Provides a convenience entry point that wires configuration, logging,
// telemetry, persistence, archiving, the workflow engine and the run
// controller into a single System value.
//
// Usage:
//
//	import "github.com/BaSui01/coordflow"
//
//	sys, err := coordflow.New(
//	    coordflow.WithConfigFile("coordflow.yaml"),
//	    coordflow.WithWorker(state.RoleIntake, myIntakeWorker),
//	    coordflow.WithWorker(state.RolePlanning, myPlanningWorker),
//	    coordflow.WithWorker(state.RoleInsight, myInsightWorker),
//	)
//	defer sys.Close()
//
//	runID, _ := sys.Controller.StartRun(ctx, nil)
//
// =============================================================================
package coordflow

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/coordflow/config"
	"github.com/BaSui01/coordflow/durable"
	"github.com/BaSui01/coordflow/internal/database"
	"github.com/BaSui01/coordflow/internal/metrics"
	"github.com/BaSui01/coordflow/internal/pool"
	"github.com/BaSui01/coordflow/internal/telemetry"
	"github.com/BaSui01/coordflow/notify"
	"github.com/BaSui01/coordflow/persistence"
	"github.com/BaSui01/coordflow/runner"
	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/worker"
	"github.com/BaSui01/coordflow/workflow"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures the System created by New.
type Option func(*options)

type options struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	registry   *worker.Registry
	workers    map[state.Role]worker.Invoker
	store      persistence.SnapshotStore
	archiver   *persistence.Archiver
	sinks      []notify.Sink
	useMocks   bool
}

// WithConfig sets a fully built configuration, bypassing file and env loading.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from the given YAML file (plus env
// overrides) when no WithConfig is supplied.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogger sets a pre-built logger instead of building one from LogConfig.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithWorker binds an invoker to a pipeline role.
func WithWorker(role state.Role, inv worker.Invoker) Option {
	return func(o *options) { o.workers[role] = inv }
}

// WithRegistry sets a pre-built worker registry. Workers added with
// WithWorker are registered on top of it.
func WithRegistry(r *worker.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMockWorkers fills every unbound pipeline role with an in-process mock
// worker. Intended for demos and tests.
func WithMockWorkers() Option {
	return func(o *options) { o.useMocks = true }
}

// WithSnapshotStore overrides the snapshot store built from SnapshotConfig.
func WithSnapshotStore(store persistence.SnapshotStore) Option {
	return func(o *options) { o.store = store }
}

// WithArchiver overrides the archiver built from ArchiveConfig.
func WithArchiver(a *persistence.Archiver) Option {
	return func(o *options) { o.archiver = a }
}

// WithSink adds a progress sink alongside the configured ones.
func WithSink(s notify.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}

// System bundles the wired components of a coordflow deployment. Create it
// with New and release it with Close.
type System struct {
	Controller *runner.Controller
	Engine     *workflow.Engine
	Registry   *worker.Registry
	Store      persistence.SnapshotStore
	Archiver   *persistence.Archiver
	Bus        *notify.BusSink
	DBPool     *database.PoolManager
	Monitor    *durable.Monitor
	Metrics    *metrics.Collector
	Logger     *zap.Logger
	Config     *config.Config

	providers *telemetry.Providers
	monCancel context.CancelFunc
}

// New builds a System from configuration plus options.
func New(opts ...Option) (*System, error) {
	o := &options{workers: make(map[state.Role]worker.Invoker)}
	for _, opt := range opts {
		opt(o)
	}

	// 配置
	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.NewLoader().
			WithConfigPath(o.configPath).
			WithValidator(func(c *config.Config) error { return c.Validate() }).
			Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 日志
	logger := o.logger
	if logger == nil {
		built, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		logger = built
	}

	// 遥测
	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// 指标
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	// 工作者注册表
	registry := o.registry
	if registry == nil {
		registry = worker.NewRegistry()
	}
	for role, inv := range o.workers {
		if cfg.Worker.RateLimitRPS > 0 {
			inv = worker.NewRateLimited(inv, cfg.Worker.RateLimitRPS, cfg.Worker.RateLimitBurst)
		}
		if err := registry.Register(role, inv); err != nil {
			return nil, err
		}
	}
	if o.useMocks {
		for _, role := range []state.Role{state.RoleIntake, state.RolePlanning, state.RoleInsight} {
			if _, ok := registry.Get(role); !ok {
				if err := registry.Register(role, worker.NewMock(role)); err != nil {
					return nil, err
				}
			}
		}
	}

	// 快照存储
	store := o.store
	if store == nil {
		store, err = persistence.NewSnapshotStore(snapshotConfig(cfg.Snapshot))
		if err != nil {
			return nil, fmt.Errorf("build snapshot store: %w", err)
		}
	}

	// 归档
	archiver := o.archiver
	var dbPool *database.PoolManager
	if archiver == nil && cfg.Archive.Enabled {
		archiver, err = persistence.OpenArchiver(persistence.ArchiveConfig{
			Enabled: true,
			Driver:  cfg.Archive.Driver,
			DSN:     cfg.Archive.DSN,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open archiver: %w", err)
		}
		dbPool, err = database.NewPoolManager(archiver.DB(), database.PoolConfig{
			MaxIdleConns:        cfg.Archive.Pool.MaxIdleConns,
			MaxOpenConns:        cfg.Archive.Pool.MaxOpenConns,
			ConnMaxLifetime:     cfg.Archive.Pool.ConnMaxLifetime,
			ConnMaxIdleTime:     cfg.Archive.Pool.ConnMaxIdleTime,
			HealthCheckInterval: cfg.Archive.Pool.HealthCheckInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configure archive pool: %w", err)
		}
		// Ensures a usable schema on fresh databases; managed deployments
		// run `coordflow migrate up` instead and this becomes a no-op.
		if err := archiver.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate archive schema: %w", err)
		}
	}

	// 通知
	bus := notify.NewBusSink(cfg.Notify.BusBuffer, logger)
	sinks := notify.MultiSink{bus}
	if cfg.Notify.LogSink {
		sinks = append(sinks, notify.NewLogSink(logger))
	}
	if cfg.Notify.WebSocketURL != "" {
		sinks = append(sinks, notify.NewWebSocketSink(cfg.Notify.WebSocketURL, logger))
	}
	sinks = append(sinks, o.sinks...)

	// 引擎
	retry := retryPolicy(cfg.Durable)
	engine, err := workflow.NewEngine(workflow.Config{
		Registry: registry,
		Store:    store,
		Sink:     sinks,
		Metrics:  collector,
		Logger:   logger,
		Retry:    &retry,
		Score:    scorePolicy(cfg.Supervisor),
		MaxSteps: cfg.Engine.MaxSteps,
	})
	if err != nil {
		return nil, err
	}

	// 运行控制器
	controller, err := runner.New(runner.Config{
		Engine:   engine,
		Store:    store,
		Archiver: archiver,
		Sink:     sinks,
		Metrics:  collector,
		Logger:   logger,
		Pool: pool.Config{
			MaxConcurrent: cfg.Pool.MaxConcurrent,
			QueueSize:     cfg.Pool.QueueSize,
			IdleTimeout:   cfg.Pool.IdleTimeout,
		},
		KeepSnapshots: cfg.Snapshot.KeepTerminal,
		RunTimeout:    cfg.Engine.RunTimeout,
	})
	if err != nil {
		return nil, err
	}

	sys := &System{
		Controller: controller,
		Engine:     engine,
		Registry:   registry,
		Store:      store,
		Archiver:   archiver,
		Bus:        bus,
		DBPool:     dbPool,
		Metrics:    collector,
		Logger:     logger,
		Config:     cfg,
		providers:  providers,
	}

	// 健康巡检
	if cfg.Health.Enabled {
		sys.Monitor = durable.NewMonitor(registry, &durable.HealthPolicy{
			Interval:     cfg.Health.Interval,
			CheckTimeout: cfg.Health.CheckTimeout,
			Attempts:     cfg.Health.Attempts,
		}, sinks, logger)
		monCtx, cancel := context.WithCancel(context.Background())
		sys.monCancel = cancel
		go sys.Monitor.Run(monCtx)
	}

	return sys, nil
}

// Close shuts the system down: new runs are rejected, the health monitor
// stops, the bus drains and telemetry flushes.
func (s *System) Close() error {
	if s.monCancel != nil {
		s.monCancel()
		s.Monitor.Stop()
	}
	s.Controller.Close()
	s.Bus.Stop()
	if s.DBPool != nil {
		s.DBPool.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.providers.Shutdown(ctx)
}

// NewLogger builds a zap logger from LogConfig.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	zc.DisableCaller = !cfg.EnableCaller
	zc.DisableStacktrace = !cfg.EnableStacktrace

	return zc.Build()
}

func snapshotConfig(cfg config.SnapshotConfig) persistence.Config {
	return persistence.Config{
		Type:    persistence.StoreType(cfg.Type),
		BaseDir: cfg.BaseDir,
		Redis: persistence.RedisConfig{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
		},
		Mongo: persistence.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		},
	}
}

func retryPolicy(cfg config.DurableConfig) durable.Policy {
	return durable.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.Multiplier,
		Jitter:         cfg.Jitter,
		AttemptTimeout: cfg.AttemptTimeout,
	}
}

func scorePolicy(cfg config.SupervisorConfig) workflow.ScorePolicy {
	return workflow.ScorePolicy{
		WeightIntake:      cfg.WeightIntake,
		WeightPlanning:    cfg.WeightPlanning,
		WeightInsight:     cfg.WeightInsight,
		ThresholdComplete: cfg.ThresholdComplete,
		ThresholdInsight:  cfg.ThresholdInsight,
		ThresholdPlanning: cfg.ThresholdPlanning,
	}
}
