package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 运行指标
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runDuration  prometheus.Histogram
	activeRuns   prometheus.Gauge

	// 阶段指标
	stageExecutionsTotal *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
	stageRetriesTotal    *prometheus.CounterVec

	// 命令指标
	commandsTotal *prometheus.CounterVec

	// 快照指标
	snapshotOpsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
// promauto 注册到默认 Registry，每个进程只应创建一个 Collector。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 运行指标
	c.runsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of workflow runs started",
		},
	)

	c.runsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of workflow runs finished",
		},
		[]string{"outcome"},
	)

	c.runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	c.activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of workflow runs currently executing",
		},
	)

	// 阶段指标
	c.stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of stage executions",
		},
		[]string{"stage", "status"},
	)

	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	c.stageRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_retries_total",
			Help:      "Total number of stage execution retries",
		},
		[]string{"stage"},
	)

	// 命令指标
	c.commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of commands applied",
		},
		[]string{"kind", "status"},
	)

	// 快照指标
	c.snapshotOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_operations_total",
			Help:      "Total number of snapshot store operations",
		},
		[]string{"operation", "status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🏃 运行指标记录
// =============================================================================

// RecordRunStarted 记录运行启动
func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
	c.activeRuns.Inc()
}

// RecordRunFinished 记录运行结束
func (c *Collector) RecordRunFinished(outcome string, duration time.Duration) {
	c.runsFinished.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(duration.Seconds())
	c.activeRuns.Dec()
}

// =============================================================================
// 🎭 阶段指标记录
// =============================================================================

// RecordStageExecution 记录阶段执行
func (c *Collector) RecordStageExecution(stage, status string, duration time.Duration) {
	c.stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageRetry 记录阶段重试
func (c *Collector) RecordStageRetry(stage string) {
	c.stageRetriesTotal.WithLabelValues(stage).Inc()
}

// =============================================================================
// 📮 命令指标记录
// =============================================================================

// RecordCommand 记录命令执行
func (c *Collector) RecordCommand(kind, status string) {
	c.commandsTotal.WithLabelValues(kind, status).Inc()
}

// =============================================================================
// 💾 快照指标记录
// =============================================================================

// RecordSnapshotOp 记录快照操作
func (c *Collector) RecordSnapshotOp(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.snapshotOpsTotal.WithLabelValues(operation, status).Inc()
}
