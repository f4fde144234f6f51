package state

import "time"

// TaskStatus represents the lifecycle status of an individual task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the task status is final.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is a unit of assigned work tracked independently of the coarse-grained
// stage. Created by a task-assignment command; mutated only through the
// CompleteTask/FailTask transition helpers on State.
//
// Invariant: CompletedAt is set if and only if Status is terminal.
type Task struct {
	ID           string         `json:"id"`
	Role         Role           `json:"role"`
	Description  string         `json:"description"`
	Status       TaskStatus     `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// NewTask creates a pending task assigned to a role.
func NewTask(id string, role Role, description string) *Task {
	return &Task{
		ID:          id,
		Role:        role,
		Description: description,
		Status:      TaskStatusPending,
		CreatedAt:   time.Now(),
	}
}

func (t *Task) clone() *Task {
	cp := *t
	cp.Result = deepCopyMap(t.Result)
	cp.Metadata = deepCopyMap(t.Metadata)
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}
