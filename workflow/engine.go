package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/durable"
	"github.com/BaSui01/coordflow/internal/ctxkeys"
	"github.com/BaSui01/coordflow/internal/metrics"
	"github.com/BaSui01/coordflow/internal/telemetry"
	"github.com/BaSui01/coordflow/notify"
	"github.com/BaSui01/coordflow/persistence"
	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
	"github.com/BaSui01/coordflow/worker"
)

// ErrRunPaused reports that the engine parked on the cooperative pause flag.
// The caller keeps the returned state and re-enters Run after resuming.
var ErrRunPaused = errors.New("run paused")

// DefaultMaxSteps bounds a single run; runaway routing loops become
// execution faults instead of spinning forever.
const DefaultMaxSteps = 50

// Config assembles an engine. Registry is required and must carry a worker
// for every non-supervision role; everything else has a working default.
type Config struct {
	Registry *worker.Registry
	Store    persistence.SnapshotStore
	Sink     notify.Sink
	Metrics  *metrics.Collector
	Logger   *zap.Logger
	Retry    *durable.Policy
	Score    ScorePolicy
	MaxSteps int
}

// Engine drives one run at a time through the compiled coordination graph.
// It owns no state across runs and is safe for concurrent Run calls with
// distinct states.
type Engine struct {
	graph    *Compiled
	store    persistence.SnapshotStore
	sink     notify.Sink
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *zap.Logger
	retry    *durable.Policy
	maxSteps int
}

// NewEngine validates the configuration, builds the graph and compiles it.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "worker registry is required")
	}
	if !cfg.Registry.Complete() {
		return nil, types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("worker registry incomplete: have roles %v", cfg.Registry.Roles()))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "workflow_engine"))

	sink := cfg.Sink
	if sink == nil {
		sink = notify.NopSink{}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = durable.DefaultPolicy()
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	graph, err := buildGraph(cfg.Registry, cfg.Score, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		graph:    graph,
		store:    cfg.Store,
		sink:     sink,
		metrics:  cfg.Metrics,
		tracer:   telemetry.Tracer(),
		logger:   logger,
		retry:    retry,
		maxSteps: maxSteps,
	}, nil
}

// StepHook runs at the top of every step, before the pause check, in the
// goroutine that owns the state. The run controller uses it to apply queued
// commands between steps without breaking the single-writer discipline.
type StepHook func(st *state.State)

// Run advances st until it reaches a terminal stage, the pause flag parks it,
// or a fault ends it. The returned state is always the most recent committed
// snapshot; on ErrRunPaused the caller re-enters Run with it after resuming.
//
// Resume semantics are at-least-once: re-entering with a snapshot re-executes
// the node recorded in its stage.
func (e *Engine) Run(ctx context.Context, runID string, st *state.State) (*state.State, error) {
	return e.RunWithHook(ctx, runID, st, nil)
}

// RunWithHook is Run with a per-step hook.
func (e *Engine) RunWithHook(ctx context.Context, runID string, st *state.State, hook StepHook) (*state.State, error) {
	ctx = ctxkeys.WithRunID(ctx, runID)

	node := string(st.Stage)
	for step := 0; ; step++ {
		if st.Stage.IsTerminal() {
			return st, nil
		}
		if step >= e.maxSteps {
			err := types.NewError(types.ErrMaxSteps,
				fmt.Sprintf("run exceeded %d steps", e.maxSteps))
			return e.fail(ctx, runID, st, node, err)
		}

		if hook != nil {
			hook(st)
			// A hook-applied command may have forced a terminal stage
			// (workflow control "complete"); the routed node must not run
			// against it.
			if st.Stage.IsTerminal() {
				e.saveSnapshot(ctx, runID, st)
				return st, nil
			}
		}
		// Pause is checked before the next-role designation is consumed so a
		// pending handoff survives a pause/resume cycle.
		if st.Paused() {
			return st, ErrRunPaused
		}
		if role, ok := st.ConsumeNextRole(); ok {
			if stage, valid := state.StageForRole(role); valid {
				node = string(stage)
			}
		}
		if !e.graph.Has(node) {
			err := types.NewError(types.ErrUnknownRoute, fmt.Sprintf("no node for stage %q", node))
			return e.fail(ctx, runID, st, node, err)
		}

		out, err := e.executeNode(ctx, runID, node, st)
		if err != nil {
			return e.fail(ctx, runID, st, node, err)
		}
		st = out

		e.saveSnapshot(ctx, runID, st)
		e.emit(runID, node, st, notify.EventStageFinished)

		if st.Stage.IsTerminal() {
			return st, nil
		}

		next, err := e.graph.Route(node, st)
		if err != nil {
			return e.fail(ctx, runID, st, node, err)
		}
		if next == RouteEnd {
			return st, nil
		}
		node = next
	}
}

// executeNode runs one node under the durable wrapper with tracing and
// metrics around it.
func (e *Engine) executeNode(ctx context.Context, runID, node string, st *state.State) (*state.State, error) {
	ctx = ctxkeys.WithStage(ctx, node)
	ctx, span := e.tracer.Start(ctx, "workflow.stage",
		trace.WithAttributes(
			attribute.String("coordflow.run_id", runID),
			attribute.String("coordflow.stage", node),
		))
	defer span.End()

	e.emit(runID, node, st, notify.EventStageStarted)

	policy := *e.retry
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		if e.metrics != nil {
			e.metrics.RecordStageRetry(node)
		}
		e.emit(runID, node, st, notify.EventStageRetried)
		e.logger.Warn("stage retry",
			zap.String("run_id", runID),
			zap.String("stage", node),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
	}
	runner := durable.NewRunner(&policy, e.logger)

	started := time.Now()
	out, err := runner.ExecuteUnit(ctx, node, st, func(ctx context.Context, clone *state.State) error {
		return e.graph.Execute(ctx, node, clone)
	})
	duration := time.Since(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.metrics != nil {
			e.metrics.RecordStageExecution(node, "error", duration)
		}
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordStageExecution(node, "ok", duration)
	}
	return out, nil
}

// fail promotes an execution fault to the terminal error stage. The fault is
// recorded in the supervision error log so GetSummary exposes it.
func (e *Engine) fail(ctx context.Context, runID string, st *state.State, node string, cause error) (*state.State, error) {
	e.logger.Error("run failed",
		zap.String("run_id", runID),
		zap.String("stage", node),
		zap.Error(cause))

	st.AddError(state.RoleSupervision, cause.Error())
	st.TransitionStage(state.StageError)
	e.saveSnapshot(ctx, runID, st)
	e.emit(runID, node, st, notify.EventRunFailed)
	return st, cause
}

func (e *Engine) saveSnapshot(ctx context.Context, runID string, st *state.State) {
	if e.store == nil {
		return
	}
	err := e.store.SaveSnapshot(ctx, runID, st)
	if e.metrics != nil {
		e.metrics.RecordSnapshotOp("save", err)
	}
	if err != nil {
		// Snapshots are a recovery aid; failing to write one never fails
		// the run.
		e.logger.Warn("snapshot save failed",
			zap.String("run_id", runID),
			zap.Error(err))
	}
}

func (e *Engine) emit(runID, node string, st *state.State, event notify.Event) {
	e.sink.Emit(notify.Progress{
		RunID:     runID,
		Stage:     st.Stage,
		Role:      roleForNode(node),
		Event:     event,
		Summary:   st.Summary(),
		Timestamp: time.Now(),
	})
}

func roleForNode(node string) state.Role {
	switch node {
	case NodeIntake:
		return state.RoleIntake
	case NodePlanning:
		return state.RolePlanning
	case NodeInsight:
		return state.RoleInsight
	case NodeSupervision:
		return state.RoleSupervision
	default:
		return ""
	}
}
