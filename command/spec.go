package command

import (
	"fmt"
	"time"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// Spec is the serializable request for building a command. It is the external
// submission surface: callers describe the command, Build resolves it to a
// concrete instance.
type Spec struct {
	Kind Kind `json:"kind"`

	// Roles. Target is required by every kind except workflow control.
	Source state.Role `json:"source,omitempty"`
	Target state.Role `json:"target,omitempty"`

	// Per-kind payload fields.
	Message      string         `json:"message,omitempty"`       // handoff
	Request      string         `json:"request,omitempty"`       // data request
	Description  string         `json:"description,omitempty"`   // task assignment
	Dependencies []string       `json:"dependencies,omitempty"`  // task assignment
	Data         map[string]any `json:"data,omitempty"`          // handoff data / request params / task params / result data
	Summary      string         `json:"summary,omitempty"`       // result delivery
	Action       ControlAction  `json:"action,omitempty"`        // workflow control

	// Auditing metadata.
	Priority Priority       `json:"priority,omitempty"`
	Timeout  time.Duration  `json:"timeout,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Build resolves a Spec to a concrete command. The switch is exhaustive over
// the closed set of kinds; unknown kinds are a validation error.
func Build(spec Spec) (Command, error) {
	opts := specOptions(spec)

	var (
		cmd Command
		err error
	)
	switch spec.Kind {
	case KindHandoff:
		cmd, err = NewHandoff(spec.Source, spec.Target, spec.Message, spec.Data, opts...)
	case KindDataRequest:
		cmd, err = NewDataRequest(spec.Source, spec.Target, spec.Request, spec.Data, opts...)
	case KindTaskAssignment:
		cmd, err = NewTaskAssignment(spec.Target, spec.Description, spec.Data, spec.Dependencies, opts...)
	case KindResultDelivery:
		cmd, err = NewResultDelivery(spec.Source, spec.Target, spec.Data, spec.Summary, opts...)
	case KindWorkflowControl:
		cmd, err = NewWorkflowControl(spec.Action, spec.Data, opts...)
	default:
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("unknown command kind: %q", spec.Kind))
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func specOptions(spec Spec) []Option {
	var opts []Option
	if spec.Priority != "" {
		opts = append(opts, WithPriority(spec.Priority))
	}
	if spec.Timeout > 0 {
		opts = append(opts, WithTimeout(spec.Timeout))
	}
	if spec.Metadata != nil {
		opts = append(opts, WithMetadata(spec.Metadata))
	}
	return opts
}
