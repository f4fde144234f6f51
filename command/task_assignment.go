package command

import (
	"fmt"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// TaskAssignment creates a tracked task for a role. The task id is the
// command id, which ties the task back to its assignment in the audit trail.
type TaskAssignment struct {
	base
	target       state.Role
	description  string
	params       map[string]any
	dependencies []string
}

// NewTaskAssignment validates the payload and builds a task-assignment command.
func NewTaskAssignment(target state.Role, description string, params map[string]any, dependencies []string, opts ...Option) (*TaskAssignment, error) {
	if _, ok := state.StageForRole(target); !ok {
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("task assignment: unknown target role %q", target))
	}
	if description == "" {
		return nil, types.NewError(types.ErrInvalidCommand, "task assignment: empty description")
	}
	c := &TaskAssignment{
		target:       target,
		description:  description,
		params:       params,
		dependencies: dependencies,
	}
	c.base = applyOptions(KindTaskAssignment, opts)
	return c, nil
}

// TaskID returns the id the created task will carry (the command id).
func (c *TaskAssignment) TaskID() string { return c.id }

// Execute implements Command.
func (c *TaskAssignment) Execute(st *state.State) (Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	task := state.NewTask(c.id, c.target, c.description)
	task.Dependencies = c.dependencies
	task.Metadata = c.params
	st.AddTask(task)

	st.AddMessage(c.target, state.Message{
		Content:   fmt.Sprintf("Task assigned: %s", c.description),
		CommandID: c.id,
		Metadata: map[string]any{
			"task_id":         task.ID,
			"task_params":     c.params,
			"dependencies":    c.dependencies,
			"assignment_type": "task_assignment",
		},
	})

	c.complete()
	return Result{
		"task_assigned": true,
		"task_id":       task.ID,
		"target_role":   string(c.target),
	}, nil
}

// Undo cancels the assignment by removing the task from the active list.
func (c *TaskAssignment) Undo(st *state.State) (Result, error) {
	st.RemoveActiveTask(c.id)
	return Result{"task_cancelled": true, "task_id": c.id}, nil
}
