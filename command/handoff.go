package command

import (
	"fmt"
	"time"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// Handoff hands workflow control from one role to another: it sets NextRole,
// appends a directed message to the target role's log, and transitions the
// stage according to the fixed role->stage mapping. It fails only on an
// internal invariant violation (an illegal stage transition), never on
// business conditions.
type Handoff struct {
	base
	source  state.Role
	target  state.Role
	message string
	data    map[string]any
}

// NewHandoff validates the roles and builds a handoff command.
func NewHandoff(source, target state.Role, message string, data map[string]any, opts ...Option) (*Handoff, error) {
	if _, ok := state.StageForRole(target); !ok {
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("handoff: unknown target role %q", target))
	}
	if _, ok := state.StageForRole(source); !ok {
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("handoff: unknown source role %q", source))
	}
	c := &Handoff{
		source:  source,
		target:  target,
		message: message,
		data:    data,
	}
	c.base = applyOptions(KindHandoff, opts)
	return c, nil
}

// Execute implements Command.
func (c *Handoff) Execute(st *state.State) (Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	targetStage, _ := state.StageForRole(c.target)
	if !state.CanTransition(st.Stage, targetStage) {
		err := types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("handoff %s -> %s: %v", c.source, c.target,
				state.ErrInvalidTransition{From: st.Stage, To: targetStage}))
		c.fail(err)
		return nil, err
	}

	st.AddMessage(c.target, state.Message{
		Content:    fmt.Sprintf("Handoff from %s: %s", c.source, c.message),
		SourceRole: c.source,
		CommandID:  c.id,
		Metadata: map[string]any{
			"handoff_data": c.data,
			"target_role":  string(c.target),
		},
	})
	st.TransitionStage(targetStage, c.target)

	c.complete()
	return Result{
		"target_role":        string(c.target),
		"handoff_successful": true,
		"handoff_time":       c.completedAt.Format(time.RFC3339Nano),
	}, nil
}

// Undo returns control to the source role. It appends nothing; the directed
// message stays in the target's append-only log.
func (c *Handoff) Undo(st *state.State) (Result, error) {
	st.NextRole = c.source
	return Result{
		"handoff_undone": true,
		"returned_to":    string(c.source),
	}, nil
}
