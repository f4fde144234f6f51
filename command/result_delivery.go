package command

import (
	"fmt"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// ResultDelivery publishes a role's result: it writes ResultsByRole for the
// source role and appends a delivery message to the target role's log.
// Irreversible by design — results, once delivered, stay delivered.
type ResultDelivery struct {
	base
	source  state.Role
	target  state.Role
	data    map[string]any
	summary string
}

// NewResultDelivery validates the payload and builds a result-delivery command.
func NewResultDelivery(source, target state.Role, data map[string]any, summary string, opts ...Option) (*ResultDelivery, error) {
	if _, ok := state.StageForRole(source); !ok {
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("result delivery: unknown source role %q", source))
	}
	if _, ok := state.StageForRole(target); !ok {
		return nil, types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("result delivery: unknown target role %q", target))
	}
	if data == nil {
		return nil, types.NewError(types.ErrInvalidCommand, "result delivery: nil result data")
	}
	c := &ResultDelivery{
		source:  source,
		target:  target,
		data:    data,
		summary: summary,
	}
	c.base = applyOptions(KindResultDelivery, opts)
	return c, nil
}

// Execute implements Command.
func (c *ResultDelivery) Execute(st *state.State) (Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	st.SetResult(c.source, c.data)
	st.AddMessage(c.target, state.Message{
		Content:    fmt.Sprintf("Results from %s: %s", c.source, c.summary),
		SourceRole: c.source,
		CommandID:  c.id,
		Metadata: map[string]any{
			"result_data":   c.data,
			"delivery_type": "result_delivery",
		},
	})

	c.complete()
	return Result{
		"result_delivered": true,
		"target_role":      string(c.target),
		"source_role":      string(c.source),
	}, nil
}

// Undo is not supported: delivery is append-only and irreversible. It touches
// nothing and returns a marker.
func (c *ResultDelivery) Undo(st *state.State) (Result, error) {
	return Result{"result_delivery_undo": "not_supported"}, nil
}
