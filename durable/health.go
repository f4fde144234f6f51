package durable

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/coordflow/notify"
	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/worker"
)

// ActionRestartUnhealthy is the maintenance action recommended when any
// worker probe fails.
const ActionRestartUnhealthy = "restart_unhealthy_workers"

// HealthPolicy 工作者健康巡检策略
type HealthPolicy struct {
	Interval     time.Duration // 巡检间隔
	CheckTimeout time.Duration // 单次探测超时
	Attempts     int           // 每个工作者的探测次数
}

// DefaultHealthPolicy 返回默认巡检策略
func DefaultHealthPolicy() *HealthPolicy {
	return &HealthPolicy{
		Interval:     30 * time.Second,
		CheckTimeout: 5 * time.Second,
		Attempts:     2,
	}
}

// HealthReport is one sweep over all registered workers.
type HealthReport struct {
	Healthy   []state.Role `json:"healthy"`
	Unhealthy []state.Role `json:"unhealthy"`
	Total     int          `json:"total"`
	Actions   []string     `json:"actions,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// AllHealthy reports whether the sweep found no failing workers.
func (r *HealthReport) AllHealthy() bool { return len(r.Unhealthy) == 0 }

// Monitor periodically probes every registered worker, independent of the
// routing graph. Failing probes produce a maintenance action; reports go to
// the notify sink.
type Monitor struct {
	registry *worker.Registry
	policy   *HealthPolicy
	sink     notify.Sink
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor over the registry. Nil policy and sink fall
// back to defaults.
func NewMonitor(registry *worker.Registry, policy *HealthPolicy, sink notify.Sink, logger *zap.Logger) *Monitor {
	if policy == nil {
		policy = DefaultHealthPolicy()
	}
	if sink == nil {
		sink = notify.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		registry: registry,
		policy:   policy,
		sink:     sink,
		logger:   logger.With(zap.String("component", "health_monitor")),
		stop:     make(chan struct{}),
	}
}

// Check 并发探测所有已注册工作者并汇总报告
// 未实现 HealthChecker 的工作者视为健康。
func (m *Monitor) Check(ctx context.Context) *HealthReport {
	roles := m.registry.Roles()
	report := &HealthReport{
		Total:     len(roles),
		Timestamp: time.Now(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, role := range roles {
		role := role
		g.Go(func() error {
			inv, ok := m.registry.Get(role)
			if !ok {
				return nil
			}
			err := m.probe(gctx, inv)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Warn("worker unhealthy",
					zap.String("role", string(role)),
					zap.Error(err),
				)
				report.Unhealthy = append(report.Unhealthy, role)
			} else {
				report.Healthy = append(report.Healthy, role)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Healthy, func(i, j int) bool { return report.Healthy[i] < report.Healthy[j] })
	sort.Slice(report.Unhealthy, func(i, j int) bool { return report.Unhealthy[i] < report.Unhealthy[j] })
	if len(report.Unhealthy) > 0 {
		report.Actions = append(report.Actions, ActionRestartUnhealthy)
	}
	return report
}

// probe 带超时探测单个工作者，失败时按策略重试
func (m *Monitor) probe(ctx context.Context, inv worker.Invoker) error {
	hc, ok := inv.(worker.HealthChecker)
	if !ok {
		return nil
	}

	var lastErr error
	attempts := m.policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		probeCtx, cancel := context.WithTimeout(ctx, m.policy.CheckTimeout)
		lastErr = hc.Healthy(probeCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// Run loops Check on the policy interval until the context is cancelled or
// Stop is called. Every report is emitted to the sink.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			report := m.Check(ctx)
			m.emit(report)
		}
	}
}

func (m *Monitor) emit(report *HealthReport) {
	summary := state.Summary{HasErrors: !report.AllHealthy()}
	m.sink.Emit(notify.Progress{
		Event:     notify.EventHealthReport,
		Summary:   summary,
		Timestamp: report.Timestamp,
	})
	if !report.AllHealthy() {
		m.logger.Warn("health sweep found unhealthy workers",
			zap.Int("total", report.Total),
			zap.Int("unhealthy", len(report.Unhealthy)),
			zap.Strings("actions", report.Actions),
		)
	}
}

// Stop terminates Run.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
