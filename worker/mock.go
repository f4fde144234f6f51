package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/coordflow/state"
)

// Mock is an in-process worker returning a canned payload. It stands in for
// external agents in examples and tests; the payloads mirror what the real
// workers of each role would produce.
type Mock struct {
	role    state.Role
	payload map[string]any
	delay   time.Duration

	mu        sync.Mutex
	failLeft  int
	unhealthy error
	calls     int
}

// MockOption customizes a mock worker.
type MockOption func(*Mock)

// WithDelay makes each invocation sleep, simulating work.
func WithDelay(d time.Duration) MockOption {
	return func(m *Mock) { m.delay = d }
}

// WithFailures makes the first n invocations fail with a transient error.
func WithFailures(n int) MockOption {
	return func(m *Mock) { m.failLeft = n }
}

// WithUnhealthy makes the health probe report the given error.
func WithUnhealthy(err error) MockOption {
	return func(m *Mock) { m.unhealthy = err }
}

// WithPayload replaces the canned payload.
func WithPayload(payload map[string]any) MockOption {
	return func(m *Mock) { m.payload = payload }
}

// NewMock creates a mock worker for a role with that role's canned payload.
func NewMock(role state.Role, opts ...MockOption) *Mock {
	m := &Mock{role: role, payload: cannedPayload(role)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Invoke implements Invoker.
func (m *Mock) Invoke(ctx context.Context, req Request) (*Result, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.calls++
	if m.failLeft > 0 {
		m.failLeft--
		m.mu.Unlock()
		return nil, fmt.Errorf("mock %s worker: transient failure", m.role)
	}
	m.mu.Unlock()

	data := make(map[string]any, len(m.payload))
	for k, v := range m.payload {
		data[k] = v
	}
	return &Result{Success: true, Data: data}, nil
}

// Healthy implements HealthChecker.
func (m *Mock) Healthy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unhealthy
}

// Calls reports how many times Invoke has run.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// cannedPayload 返回角色的模拟工作产物
func cannedPayload(role state.Role) map[string]any {
	switch role {
	case state.RoleIntake:
		return map[string]any{
			"campaign_data_extracted": true,
			"validation_passed":       true,
			"data_quality_score":      0.95,
		}
	case state.RolePlanning:
		return map[string]any{
			"budget_allocated":        true,
			"channels_selected":       []any{"google_ads", "facebook_ads", "display"},
			"target_audience_defined": true,
			"timeline_created":        true,
		}
	case state.RoleInsight:
		return map[string]any{
			"performance_analyzed": true,
			"trends_identified":    []any{"increasing_mobile_traffic", "seasonal_variation"},
			"optimization_recommendations": []any{
				map[string]any{"type": "budget_reallocation", "priority": "high"},
				map[string]any{"type": "audience_expansion", "priority": "medium"},
			},
			"risk_assessment": map[string]any{
				"overall_score": 0.8,
				"risks":         []any{"market_volatility"},
			},
		}
	default:
		return map[string]any{}
	}
}

// NewMockRegistry builds a registry with mock workers for every pipeline role.
func NewMockRegistry(opts ...MockOption) *Registry {
	r := NewRegistry()
	for _, role := range state.Roles() {
		if role == state.RoleSupervision {
			continue // the supervisor runs in the engine, not as a worker
		}
		_ = r.Register(role, NewMock(role, opts...))
	}
	return r
}
