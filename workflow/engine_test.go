package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/coordflow/command"
	"github.com/BaSui01/coordflow/durable"
	"github.com/BaSui01/coordflow/notify"
	"github.com/BaSui01/coordflow/persistence"
	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
	"github.com/BaSui01/coordflow/worker"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Progress
}

func (s *recordingSink) Emit(p notify.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, p)
}

func (s *recordingSink) byEvent(event notify.Event) []notify.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Progress
	for _, p := range s.events {
		if p.Event == event {
			out = append(out, p)
		}
	}
	return out
}

func fastRetry() *durable.Policy {
	return &durable.Policy{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1.0,
		AttemptTimeout: 5 * time.Second,
	}
}

func newTestEngine(t *testing.T, registry *worker.Registry, store persistence.SnapshotStore, sink notify.Sink) *Engine {
	t.Helper()
	eng, err := NewEngine(Config{
		Registry: registry,
		Store:    store,
		Sink:     sink,
		Retry:    fastRetry(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func TestEngine_HappyPath(t *testing.T) {
	store := persistence.NewMemorySnapshotStore()
	sink := &recordingSink{}
	eng := newTestEngine(t, worker.NewMockRegistry(), store, sink)

	st, err := eng.Run(context.Background(), "run-1", state.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if st.Stage != state.StageComplete {
		t.Fatalf("final stage = %s, want complete", st.Stage)
	}
	if st.HasErrors() {
		t.Fatalf("unexpected errors: %v", st.ErrorsByRole)
	}
	for _, role := range []state.Role{state.RoleIntake, state.RolePlanning, state.RoleInsight} {
		if len(st.Result(role)) == 0 {
			t.Fatalf("no result recorded for %s", role)
		}
	}
	if action, _ := st.Result(state.RoleSupervision)["next_action"].(string); action != ActionComplete {
		t.Fatalf("supervisor decision = %q, want complete", action)
	}
	final, ok := st.ExecutionContext["final_output"].(map[string]any)
	if !ok {
		t.Fatal("final output bundle missing")
	}
	if final["status"] != string(state.StageComplete) {
		t.Fatalf("final output status = %v", final["status"])
	}

	// Snapshot reflects the terminal state.
	snap, err := store.LoadSnapshot(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Stage != state.StageComplete {
		t.Fatalf("snapshot stage = %s", snap.Stage)
	}

	// One stage_finished per executed node: intake, planning, insight,
	// supervision, complete.
	if got := len(sink.byEvent(notify.EventStageFinished)); got != 5 {
		t.Fatalf("stage_finished events = %d, want 5", got)
	}
}

func TestEngine_WorkerFailureEscalatesAndRecovers(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register(state.RoleIntake, worker.NewMock(state.RoleIntake, worker.WithFailures(1)))
	registry.Register(state.RolePlanning, worker.NewMock(state.RolePlanning))
	registry.Register(state.RoleInsight, worker.NewMock(state.RoleInsight))

	eng := newTestEngine(t, registry, persistence.NewMemorySnapshotStore(), notify.NopSink{})

	st, err := eng.Run(context.Background(), "run-2", state.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// First intake attempt failed, the supervisor sent the run back, the
	// second attempt succeeded.
	if st.Stage != state.StageComplete {
		t.Fatalf("final stage = %s, want complete", st.Stage)
	}
	if len(st.ErrorsByRole[state.RoleIntake]) != 1 {
		t.Fatalf("intake error log = %v, want one entry", st.ErrorsByRole[state.RoleIntake])
	}
}

func TestEngine_PausedStateParks(t *testing.T) {
	eng := newTestEngine(t, worker.NewMockRegistry(), nil, notify.NopSink{})

	st := state.New()
	st.ExecutionContext[state.CtxKeyPaused] = true

	out, err := eng.Run(context.Background(), "run-3", st)
	if !errors.Is(err, ErrRunPaused) {
		t.Fatalf("err = %v, want ErrRunPaused", err)
	}
	if out.Stage != state.StageIntake {
		t.Fatalf("paused run advanced to %s", out.Stage)
	}

	// Resume and finish.
	delete(out.ExecutionContext, state.CtxKeyPaused)
	out, err = eng.Run(context.Background(), "run-3", out)
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if out.Stage != state.StageComplete {
		t.Fatalf("resumed run ended at %s", out.Stage)
	}
}

func TestEngine_MaxStepsGuard(t *testing.T) {
	// Intake succeeds but never validates, so the supervisor keeps ordering
	// retry_intake and the run loops until the guard trips.
	registry := worker.NewRegistry()
	registry.Register(state.RoleIntake, worker.NewMock(state.RoleIntake,
		worker.WithPayload(map[string]any{"validation_passed": false})))
	registry.Register(state.RolePlanning, worker.NewMock(state.RolePlanning))
	registry.Register(state.RoleInsight, worker.NewMock(state.RoleInsight))

	sink := &recordingSink{}
	eng, err := NewEngine(Config{
		Registry: registry,
		Sink:     sink,
		Retry:    fastRetry(),
		MaxSteps: 6,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	st, err := eng.Run(context.Background(), "run-4", state.New())
	if err == nil {
		t.Fatal("expected max-steps fault")
	}
	if types.GetErrorCode(err) != types.ErrMaxSteps {
		t.Fatalf("error code = %s, want MAX_STEPS_EXCEEDED", types.GetErrorCode(err))
	}
	if st.Stage != state.StageError {
		t.Fatalf("final stage = %s, want error", st.Stage)
	}
	if got := len(sink.byEvent(notify.EventRunFailed)); got != 1 {
		t.Fatalf("run_failed events = %d, want 1", got)
	}
}

func TestEngine_TerminalStateReturnsImmediately(t *testing.T) {
	eng := newTestEngine(t, worker.NewMockRegistry(), nil, notify.NopSink{})

	st := state.New()
	st.TransitionStage(state.StageSupervision)
	st.TransitionStage(state.StageComplete)

	out, err := eng.Run(context.Background(), "run-5", st)
	if err != nil {
		t.Fatalf("Run on terminal state: %v", err)
	}
	if out != st {
		t.Fatal("terminal run returned a different state")
	}
}

func TestEngine_NextRoleDesignationWins(t *testing.T) {
	// A pending handoff to planning overrides the stage-derived node, and the
	// mock planner's canned budget lets the run finish.
	eng := newTestEngine(t, worker.NewMockRegistry(), nil, notify.NopSink{})

	st := state.New()
	st.SetResult(state.RoleIntake, map[string]any{"validation_passed": true})
	st.SetResult(state.RoleInsight, map[string]any{"performance_analyzed": true})
	st.TransitionStage(state.StageIntake, state.RolePlanning)

	out, err := eng.Run(context.Background(), "run-6", st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Stage != state.StageComplete {
		t.Fatalf("final stage = %s, want complete", out.Stage)
	}
	if len(out.Result(state.RolePlanning)) == 0 {
		t.Fatal("planning never executed")
	}
}

func TestEngine_HookForcedCompleteSettlesCleanly(t *testing.T) {
	// A workflow-control "complete" applied between steps forces the terminal
	// stage; the already-routed node must not execute against it. The hook
	// fires at the planning→insight boundary: planning has finished, stage is
	// planning, and insight is the routed node.
	store := persistence.NewMemorySnapshotStore()
	eng := newTestEngine(t, worker.NewMockRegistry(), store, notify.NopSink{})

	forced := false
	hook := func(st *state.State) {
		if forced || st.Stage != state.StagePlanning {
			return
		}
		forced = true
		ctl, err := command.NewWorkflowControl(command.ActionComplete, nil)
		if err != nil {
			t.Fatalf("NewWorkflowControl: %v", err)
		}
		if _, err := ctl.Execute(st); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	out, err := eng.RunWithHook(context.Background(), "run-7", state.New(), hook)
	if err != nil {
		t.Fatalf("RunWithHook: %v", err)
	}
	if !forced {
		t.Fatal("run never reached the planning boundary")
	}
	if out.Stage != state.StageComplete {
		t.Fatalf("final stage = %s, want complete", out.Stage)
	}
	if out.HasErrors() {
		t.Fatalf("unexpected errors: %v", out.ErrorsByRole)
	}
	if len(out.Result(state.RoleInsight)) != 0 {
		t.Fatal("insight executed after the forced complete")
	}

	snap, err := store.LoadSnapshot(context.Background(), "run-7")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Stage != state.StageComplete {
		t.Fatalf("snapshot stage = %s, want complete", snap.Stage)
	}
}

func TestEngine_RequiresCompleteRegistry(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register(state.RoleIntake, worker.NewMock(state.RoleIntake))

	_, err := NewEngine(Config{Registry: registry})
	if err == nil {
		t.Fatal("incomplete registry accepted")
	}
	if types.GetErrorCode(err) != types.ErrInvalidConfig {
		t.Fatalf("error code = %s, want INVALID_CONFIG", types.GetErrorCode(err))
	}

	if _, err := NewEngine(Config{}); err == nil {
		t.Fatal("nil registry accepted")
	}
}
