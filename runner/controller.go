package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/command"
	"github.com/BaSui01/coordflow/internal/metrics"
	"github.com/BaSui01/coordflow/internal/pool"
	"github.com/BaSui01/coordflow/notify"
	"github.com/BaSui01/coordflow/persistence"
	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
	"github.com/BaSui01/coordflow/workflow"
)

const (
	commandQueueSize = 16
	archiveTimeout   = 5 * time.Second
)

// Config assembles a controller. Engine is required; the rest defaults to
// inert implementations.
type Config struct {
	Engine   *workflow.Engine
	Store    persistence.SnapshotStore
	Archiver *persistence.Archiver
	Sink     notify.Sink
	Metrics  *metrics.Collector
	Logger   *zap.Logger
	Pool     pool.Config

	// HistoryLimit bounds the per-run command history (DefaultHistoryLimit
	// when zero).
	HistoryLimit int

	// RunTimeout caps the wall-clock lifetime of a single run, pauses
	// included. Zero means unlimited.
	RunTimeout time.Duration

	// KeepSnapshots retains terminal runs' snapshots instead of deleting
	// them once the run is archived.
	KeepSnapshots bool
}

// Controller is the public run surface. Each run is an actor: one goroutine
// owns the run's State exclusively, commands arrive as envelopes over the
// run's channel and are applied between steps, and observers only ever see
// immutable summary copies.
type Controller struct {
	engine  *workflow.Engine
	store   persistence.SnapshotStore
	archive *persistence.Archiver
	sink    notify.Sink
	metrics *metrics.Collector
	logger  *zap.Logger
	pool    *pool.RunPool

	historyLimit  int
	keepSnapshots bool
	runTimeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	runs   map[string]*run
	closed bool
}

type envelope struct {
	spec  command.Spec
	reply chan reply
}

type reply struct {
	result command.Result
	err    error
}

// run is the controller-side record of one actor.
type run struct {
	id       string
	commands chan envelope
	done     chan struct{}
	history  *command.History

	mu       sync.RWMutex
	summary  state.Summary
	final    *state.State
	runErr   error
	terminal bool
}

func newRun(id string, historyLimit int) *run {
	return &run{
		id:       id,
		commands: make(chan envelope, commandQueueSize),
		done:     make(chan struct{}),
		history:  command.NewHistory(historyLimit),
	}
}

func (r *run) publish(st *state.State) {
	r.mu.Lock()
	r.summary = st.Summary()
	r.mu.Unlock()
}

func (r *run) finish(st *state.State, err error) {
	r.mu.Lock()
	r.summary = st.Summary()
	r.final = st
	r.runErr = err
	r.terminal = true
	r.mu.Unlock()
}

// New builds a controller around an engine.
func New(cfg Config) (*Controller, error) {
	if cfg.Engine == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "workflow engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = notify.NopSink{}
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = command.DefaultHistoryLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		engine:        cfg.Engine,
		store:         cfg.Store,
		archive:       cfg.Archiver,
		sink:          sink,
		metrics:       cfg.Metrics,
		logger:        logger.With(zap.String("component", "run_controller")),
		pool:          pool.NewRunPool(cfg.Pool),
		historyLimit:  historyLimit,
		keepSnapshots: cfg.KeepSnapshots,
		runTimeout:    cfg.RunTimeout,
		ctx:           ctx,
		cancel:        cancel,
		runs:          make(map[string]*run),
	}, nil
}

// StartRun creates a fresh run seeded with the initial execution context and
// dispatches its actor onto the pool. The run id is returned immediately; the
// run itself progresses in the background.
func (c *Controller) StartRun(ctx context.Context, initialContext map[string]any) (string, error) {
	st := state.New()
	for k, v := range initialContext {
		st.ExecutionContext[k] = v
	}
	runID := uuid.New().String()
	if err := c.launch(ctx, runID, st); err != nil {
		return "", err
	}
	return runID, nil
}

// ResumeRun reloads a run's snapshot and continues it from the recorded
// stage. Resume is at-least-once: the recorded stage's node re-executes.
func (c *Controller) ResumeRun(ctx context.Context, runID string) error {
	if c.store == nil {
		return types.NewError(types.ErrInvalidConfig, "no snapshot store configured")
	}

	c.mu.RLock()
	_, active := c.runs[runID]
	c.mu.RUnlock()
	if active {
		return types.NewError(types.ErrInvalidCommand,
			fmt.Sprintf("run %s is already active", runID))
	}

	st, err := c.store.LoadSnapshot(ctx, runID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return types.NewError(types.ErrRunNotFound,
				fmt.Sprintf("no snapshot for run %s", runID)).WithCause(err)
		}
		return fmt.Errorf("load snapshot for %s: %w", runID, err)
	}
	if st.Stage.IsTerminal() {
		return types.NewError(types.ErrRunClosed,
			fmt.Sprintf("run %s already reached stage %s", runID, st.Stage))
	}

	return c.launch(ctx, runID, st)
}

func (c *Controller) launch(ctx context.Context, runID string, st *state.State) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.NewError(types.ErrRunClosed, "controller closed")
	}
	r := newRun(runID, c.historyLimit)
	r.publish(st)
	c.runs[runID] = r
	c.mu.Unlock()

	// The actor runs on the controller's lifetime context, not the
	// request-scoped one.
	if err := c.pool.Dispatch(c.ctx, func(runCtx context.Context) error {
		return c.runLoop(runCtx, r, st)
	}); err != nil {
		c.mu.Lock()
		delete(c.runs, runID)
		c.mu.Unlock()
		return fmt.Errorf("dispatch run %s: %w", runID, err)
	}

	if c.metrics != nil {
		c.metrics.RecordRunStarted()
	}
	c.emit(runID, st, notify.EventRunStarted)
	c.logger.Info("run started", zap.String("run_id", runID), zap.String("stage", string(st.Stage)))
	return nil
}

// runLoop is the actor body: it alternates between engine execution and
// command application until the run reaches a terminal stage or aborts.
func (c *Controller) runLoop(ctx context.Context, r *run, st *state.State) error {
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	hook := func(current *state.State) {
		c.drainCommands(r, current)
		r.publish(current)
	}

	var runErr error
	for {
		out, err := c.engine.RunWithHook(ctx, r.id, st, hook)
		st = out
		r.publish(st)

		if err == nil {
			break
		}
		if errors.Is(err, workflow.ErrRunPaused) {
			c.emit(r.id, st, notify.EventRunPaused)
			if parkErr := c.park(ctx, r, st); parkErr != nil {
				runErr = parkErr
				break
			}
			if !st.Stage.IsTerminal() {
				c.emit(r.id, st, notify.EventRunResumed)
			}
			continue
		}
		runErr = err
		break
	}

	if runErr != nil && c.runTimeout > 0 && errors.Is(runErr, context.DeadlineExceeded) {
		runErr = types.NewError(types.ErrRunAborted,
			fmt.Sprintf("run %s exceeded the %s run timeout", r.id, c.runTimeout)).WithCause(runErr)
	}
	if runErr != nil && !st.Stage.IsTerminal() {
		// Aborted while parked; the engine never saw the fault.
		st.AddError(state.RoleSupervision, runErr.Error())
		st.TransitionStage(state.StageError)
	}

	c.settle(ctx, r, st, runErr)
	return runErr
}

// park blocks on the command channel while the run is paused.
func (c *Controller) park(ctx context.Context, r *run, st *state.State) error {
	for {
		select {
		case env := <-r.commands:
			c.applyEnvelope(r, st, env)
			r.publish(st)
			// A control command may resume the run or force it terminal
			// (complete); either way the park is over.
			if !st.Paused() || st.Stage.IsTerminal() {
				return nil
			}
		case <-ctx.Done():
			return types.NewError(types.ErrRunAborted, "run aborted while paused").WithCause(ctx.Err())
		}
	}
}

func (c *Controller) drainCommands(r *run, st *state.State) {
	for {
		select {
		case env := <-r.commands:
			c.applyEnvelope(r, st, env)
		default:
			return
		}
	}
}

func (c *Controller) applyEnvelope(r *run, st *state.State, env envelope) {
	cmd, err := command.Build(env.spec)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordCommand(string(env.spec.Kind), "rejected")
		}
		env.reply <- reply{err: err}
		return
	}

	res, execErr := cmd.Execute(st)
	r.history.Append(cmd, execErr)
	if c.metrics != nil {
		c.metrics.RecordCommand(string(cmd.Kind()), string(cmd.Status()))
	}
	if execErr != nil {
		c.logger.Warn("command failed",
			zap.String("run_id", r.id),
			zap.String("kind", string(cmd.Kind())),
			zap.Error(execErr))
	}
	env.reply <- reply{result: res, err: execErr}
}

// settle finalizes a terminal run: metrics, notification, archive, snapshot
// retention, and the done signal.
func (c *Controller) settle(ctx context.Context, r *run, st *state.State, runErr error) {
	outcome := "complete"
	if st.Stage == state.StageError {
		outcome = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRunFinished(outcome, time.Since(st.StartedAt))
	}
	if runErr == nil && st.Stage == state.StageComplete {
		c.emit(r.id, st, notify.EventRunCompleted)
	}

	c.archiveRun(r, st)

	if !c.keepSnapshots && c.store != nil {
		if err := c.store.DeleteSnapshot(context.WithoutCancel(ctx), r.id); err != nil {
			c.logger.Warn("snapshot cleanup failed", zap.String("run_id", r.id), zap.Error(err))
		}
	}

	c.logger.Info("run finished",
		zap.String("run_id", r.id),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(st.StartedAt)))

	r.finish(st, runErr)
	c.rejectQueued(r)
	close(r.done)
}

// archiveRun writes the terminal run to the archive. Best effort: a failed
// archive is logged and never affects the run outcome.
func (c *Controller) archiveRun(r *run, st *state.State) {
	if c.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := c.archive.ArchiveRun(ctx, r.id, st, r.history.Records()); err != nil {
		c.logger.Warn("run archive failed", zap.String("run_id", r.id), zap.Error(err))
	}
}

// rejectQueued answers any envelope still queued when the run ended.
func (c *Controller) rejectQueued(r *run) {
	for {
		select {
		case env := <-r.commands:
			env.reply <- reply{err: types.NewError(types.ErrRunClosed,
				fmt.Sprintf("run %s already finished", r.id))}
		default:
			return
		}
	}
}

// SubmitCommand queues a command for the run's actor and waits for the
// applied result. Commands are applied between steps, in submission order.
func (c *Controller) SubmitCommand(ctx context.Context, runID string, spec command.Spec) (command.Result, error) {
	r, err := c.run(runID)
	if err != nil {
		return nil, err
	}

	env := envelope{spec: spec, reply: make(chan reply, 1)}
	select {
	case r.commands <- env:
	case <-r.done:
		return nil, types.NewError(types.ErrRunClosed, fmt.Sprintf("run %s already finished", runID))
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case rep := <-env.reply:
		return rep.result, rep.err
	case <-r.done:
		// The run ended with the envelope still queued; rejectQueued may
		// have answered already.
		select {
		case rep := <-env.reply:
			return rep.result, rep.err
		default:
			return nil, types.NewError(types.ErrRunClosed, fmt.Sprintf("run %s already finished", runID))
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetSummary returns the latest published summary of a run.
func (c *Controller) GetSummary(runID string) (state.Summary, error) {
	r, err := c.run(runID)
	if err != nil {
		return state.Summary{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summary, nil
}

// GetFinalState returns a copy of the run's full state, available only after
// the run reached a terminal stage.
func (c *Controller) GetFinalState(runID string) (*state.State, error) {
	r, err := c.run(runID)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.terminal {
		return nil, types.NewError(types.ErrRunNotTerminal,
			fmt.Sprintf("run %s is still at stage %s", runID, r.summary.Stage))
	}
	return r.final.Clone(), nil
}

// History returns the run's applied-command records.
func (c *Controller) History(runID string) ([]command.Record, error) {
	r, err := c.run(runID)
	if err != nil {
		return nil, err
	}
	return r.history.Records(), nil
}

// Wait blocks until the run finishes or the context is done.
func (c *Controller) Wait(ctx context.Context, runID string) error {
	r, err := c.run(runID)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new runs, cancels in-flight ones and waits for their
// actors to settle.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.pool.Close()
	return nil
}

func (c *Controller) run(runID string) (*run, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runs[runID]
	if !ok {
		return nil, types.NewError(types.ErrRunNotFound, fmt.Sprintf("unknown run %s", runID))
	}
	return r, nil
}

func (c *Controller) emit(runID string, st *state.State, event notify.Event) {
	c.sink.Emit(notify.Progress{
		RunID:     runID,
		Stage:     st.Stage,
		Event:     event,
		Summary:   st.Summary(),
		Timestamp: time.Now(),
	})
}
