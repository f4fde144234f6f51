package workflow

import (
	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/worker"
)

// Node names. Stage nodes share the stage's string form so the engine can
// resolve the node to resume from a recorded snapshot stage.
const (
	NodeIntake      = string(state.StageIntake)
	NodePlanning    = string(state.StagePlanning)
	NodeInsight     = string(state.StageInsight)
	NodeSupervision = string(state.StageSupervision)
	NodeComplete    = string(state.StageComplete)
	NodeError       = string(state.StageError)
)

// intakeRouter: validated intake data moves forward; anything else escalates
// to supervision. Escalation is not failure — the supervisor decides what to
// retry.
func intakeRouter(st *state.State) string {
	if st.Stage == state.StageError {
		return NodeError
	}
	if passed, _ := st.Result(state.RoleIntake)["validation_passed"].(bool); passed {
		return NodePlanning
	}
	return NodeSupervision
}

// planningRouter: a plan without an allocated budget escalates.
func planningRouter(st *state.State) string {
	if st.Stage == state.StageError {
		return NodeError
	}
	if allocated, _ := st.Result(state.RolePlanning)["budget_allocated"].(bool); allocated {
		return NodeInsight
	}
	return NodeSupervision
}

// insightRouter: insight always hands over to supervision for review.
func insightRouter(st *state.State) string {
	if st.Stage == state.StageError {
		return NodeError
	}
	return NodeSupervision
}

// supervisionRouter reads the supervisor's stored decision. Absent or
// unrecognized decisions default to completion.
func supervisionRouter(st *state.State) string {
	if st.Stage == state.StageError {
		return NodeError
	}
	action, _ := st.Result(state.RoleSupervision)["next_action"].(string)
	switch action {
	case ActionRetryIntake:
		return NodeIntake
	case ActionRetryPlanning:
		return NodePlanning
	case ActionRetryInsight:
		return NodeInsight
	default:
		return NodeComplete
	}
}

func terminalRouter(st *state.State) string {
	return RouteEnd
}

// buildGraph assembles the coordination graph: the three worker stages, the
// supervisor, and the two terminal exits.
func buildGraph(registry *worker.Registry, policy ScorePolicy, logger *zap.Logger) (*Compiled, error) {
	g := NewGraph()

	nodes := []struct {
		name string
		exec ExecutorFunc
	}{
		{NodeIntake, roleExecutor(state.RoleIntake, registry, logger)},
		{NodePlanning, roleExecutor(state.RolePlanning, registry, logger)},
		{NodeInsight, roleExecutor(state.RoleInsight, registry, logger)},
		{NodeSupervision, supervisorExecutor(policy, logger)},
		{NodeComplete, completionExecutor(logger)},
		{NodeError, errorExecutor(logger)},
	}
	for _, n := range nodes {
		if err := g.AddNode(n.name, n.exec); err != nil {
			return nil, err
		}
	}

	routers := []struct {
		name    string
		fn      RouterFunc
		targets []string
	}{
		{NodeIntake, intakeRouter, []string{NodePlanning, NodeSupervision, NodeError}},
		{NodePlanning, planningRouter, []string{NodeInsight, NodeSupervision, NodeError}},
		{NodeInsight, insightRouter, []string{NodeSupervision, NodeError}},
		{NodeSupervision, supervisionRouter, []string{NodeIntake, NodePlanning, NodeInsight, NodeComplete, NodeError}},
		{NodeComplete, terminalRouter, []string{RouteEnd}},
		{NodeError, terminalRouter, []string{RouteEnd}},
	}
	for _, r := range routers {
		if err := g.SetRouter(r.name, r.fn, r.targets...); err != nil {
			return nil, err
		}
	}

	g.SetEntry(NodeIntake)
	return g.Compile()
}
