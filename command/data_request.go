package command

import (
	"fmt"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// DataRequest asks another role for data by appending a request message to
// its log. No stage transition; always succeeds once the target is valid.
type DataRequest struct {
	base
	source  state.Role
	target  state.Role
	request string
	params  map[string]any
}

// NewDataRequest validates the target role and builds a data-request command.
func NewDataRequest(source, target state.Role, request string, params map[string]any, opts ...Option) (*DataRequest, error) {
	if _, ok := state.StageForRole(target); !ok {
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("data request: unknown target role %q", target))
	}
	if request == "" {
		return nil, types.NewError(types.ErrInvalidCommand, "data request: empty request text")
	}
	c := &DataRequest{
		source:  source,
		target:  target,
		request: request,
		params:  params,
	}
	c.base = applyOptions(KindDataRequest, opts)
	return c, nil
}

// Execute implements Command.
func (c *DataRequest) Execute(st *state.State) (Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	st.AddMessage(c.target, state.Message{
		Content:    fmt.Sprintf("Data request from %s: %s", c.source, c.request),
		SourceRole: c.source,
		CommandID:  c.id,
		Metadata: map[string]any{
			"request_params": c.params,
			"request_type":   "data_request",
		},
	})

	c.complete()
	return Result{
		"request_sent": true,
		"target_role":  string(c.target),
		"request_id":   c.id,
	}, nil
}

// Undo acknowledges cancellation. The request message stays in the target's
// append-only log.
func (c *DataRequest) Undo(st *state.State) (Result, error) {
	return Result{"request_cancelled": true}, nil
}
