package command

import (
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// Kind identifies a command type.
type Kind string

const (
	KindHandoff         Kind = "handoff"
	KindDataRequest     Kind = "data_request"
	KindTaskAssignment  Kind = "task_assignment"
	KindResultDelivery  Kind = "result_delivery"
	KindWorkflowControl Kind = "workflow_control"
)

// Priority ranks commands for auditing. The engine itself applies commands in
// submission order; priority is metadata for observers.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status is the lifecycle status of a command instance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is the structured payload a command returns describing its effect.
type Result map[string]any

// Command is an auditable, typed state-mutation request.
//
// Execute may run at most once per instance; a second call fails with a
// COMMAND_REPLAYED invariant error. Retries create new instances (fresh ids)
// that may reuse the payload.
type Command interface {
	ID() string
	Kind() Kind
	Status() Status

	// Execute applies the command's mutation to the state and returns a
	// structured result describing the effect.
	Execute(st *state.State) (Result, error)

	// Undo applies a best-effort compensating action. Not guaranteed for
	// irreversible commands, which return a not-supported marker.
	Undo(st *state.State) (Result, error)

	// Info returns auditing metadata about the command.
	Info() Info
}

// Info is the auditing view of a command.
type Info struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Priority    Priority       `json:"priority"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ExecutedAt  *time.Time     `json:"executed_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// base carries the lifecycle shared by all command kinds.
type base struct {
	id          string
	kind        Kind
	priority    Priority
	timeout     time.Duration
	metadata    map[string]any
	createdAt   time.Time
	executedAt  *time.Time
	completedAt *time.Time
	status      Status
	errText     string
}

func newBase(kind Kind, priority Priority, timeout time.Duration, metadata map[string]any) base {
	if priority == "" {
		priority = PriorityMedium
	}
	return base{
		id:        uuid.New().String(),
		kind:      kind,
		priority:  priority,
		timeout:   timeout,
		metadata:  metadata,
		createdAt: time.Now(),
		status:    StatusPending,
	}
}

func (b *base) ID() string     { return b.id }
func (b *base) Kind() Kind     { return b.kind }
func (b *base) Status() Status { return b.status }

func (b *base) Info() Info {
	return Info{
		ID:          b.id,
		Kind:        b.kind,
		Priority:    b.priority,
		Status:      b.status,
		CreatedAt:   b.createdAt,
		ExecutedAt:  b.executedAt,
		CompletedAt: b.completedAt,
		Metadata:    b.metadata,
		Error:       b.errText,
	}
}

// begin marks the command executing. It enforces the execute-at-most-once
// invariant.
func (b *base) begin() error {
	if b.status != StatusPending {
		return types.NewError(types.ErrCommandReplayed,
			"command "+b.id+" already executed (status "+string(b.status)+")")
	}
	now := time.Now()
	b.executedAt = &now
	b.status = StatusExecuting
	return nil
}

func (b *base) complete() {
	now := time.Now()
	b.completedAt = &now
	b.status = StatusCompleted
}

func (b *base) fail(err error) {
	now := time.Now()
	b.completedAt = &now
	b.status = StatusFailed
	b.errText = err.Error()
}
