package worker

import (
	"context"

	"github.com/BaSui01/coordflow/state"
)

// Request carries everything a worker needs for one invocation.
type Request struct {
	RunID   string         `json:"run_id"`
	Role    state.Role     `json:"role"`
	Payload map[string]any `json:"payload,omitempty"`

	// Task is set when the invocation services an assigned task.
	Task *state.Task `json:"task,omitempty"`
}

// Result is the worker's answer. Success=false with ErrorText describes a
// business-level failure the workflow can route around; transport or system
// failures are returned as errors from Invoke instead.
type Result struct {
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	ErrorText string         `json:"error_text,omitempty"`
}

// Invoker is the single entry point the engine calls to run a role worker.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// HealthChecker is an optional interface for invokers that can report
// liveness. The health monitor probes invokers that implement it; invokers
// that do not are assumed healthy.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}
