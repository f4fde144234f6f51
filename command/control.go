package command

import (
	"fmt"
	"time"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// ControlAction is a workflow-control action tag.
type ControlAction string

const (
	ActionPause    ControlAction = "pause"
	ActionResume   ControlAction = "resume"
	ActionReset    ControlAction = "reset"
	ActionComplete ControlAction = "complete"
)

// WorkflowControl drives workflow progression from the outside: pause/resume
// toggle the cooperative pause flag, reset sends the run back to intake and
// clears unfinished work, complete forces the terminal stage.
type WorkflowControl struct {
	base
	action ControlAction
	params map[string]any
}

// NewWorkflowControl validates the action tag and builds a control command.
func NewWorkflowControl(action ControlAction, params map[string]any, opts ...Option) (*WorkflowControl, error) {
	switch action {
	case ActionPause, ActionResume, ActionReset, ActionComplete:
	default:
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("workflow control: unknown action %q", action))
	}
	c := &WorkflowControl{action: action, params: params}
	c.base = applyOptions(KindWorkflowControl, opts)
	return c, nil
}

// Action returns the control action tag.
func (c *WorkflowControl) Action() ControlAction { return c.action }

// Execute implements Command.
func (c *WorkflowControl) Execute(st *state.State) (Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	switch c.action {
	case ActionComplete:
		st.TransitionStage(state.StageComplete)
	case ActionReset:
		st.TransitionStage(state.StageIntake, state.RoleIntake)
		st.ActiveTasks = st.ActiveTasks[:0]
		st.FailedTasks = st.FailedTasks[:0]
	case ActionPause:
		st.ExecutionContext[state.CtxKeyPaused] = true
		st.ExecutionContext[state.CtxKeyPauseTime] = time.Now().Format(time.RFC3339Nano)
	case ActionResume:
		st.ExecutionContext[state.CtxKeyPaused] = false
		st.ExecutionContext[state.CtxKeyResumeTime] = time.Now().Format(time.RFC3339Nano)
	}

	c.complete()
	return Result{
		"control_action":    string(c.action),
		"action_successful": true,
	}, nil
}

// Undo inverts pause/resume where that is meaningful; reset and complete have
// no general inverse.
func (c *WorkflowControl) Undo(st *state.State) (Result, error) {
	switch c.action {
	case ActionPause:
		st.ExecutionContext[state.CtxKeyPaused] = false
		return Result{"workflow_control_undo": "resumed"}, nil
	case ActionResume:
		st.ExecutionContext[state.CtxKeyPaused] = true
		return Result{"workflow_control_undo": "paused"}, nil
	default:
		return Result{"workflow_control_undo": "implementation_dependent"}, nil
	}
}
