package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/internal/ctxkeys"
	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
	"github.com/BaSui01/coordflow/worker"
)

// roleExecutor builds the executor for one worker role's stage node: enter
// the stage, invoke the role's worker, and record the outcome on the state.
// Worker failures are recoverable business conditions — they land in
// ErrorsByRole and escalate to supervision instead of failing the unit.
func roleExecutor(role state.Role, registry *worker.Registry, logger *zap.Logger) ExecutorFunc {
	stage, _ := state.StageForRole(role)

	return func(ctx context.Context, st *state.State) error {
		if !state.CanTransition(st.Stage, stage) {
			return types.NewError(types.ErrInvalidTransition,
				fmt.Sprintf("cannot enter stage %s from %s", stage, st.Stage))
		}
		st.TransitionStage(stage)

		inv, ok := registry.Get(role)
		if !ok {
			return types.NewError(types.ErrInvalidConfig,
				fmt.Sprintf("no worker registered for role %s", role))
		}

		runID, _ := ctxkeys.RunID(ctx)
		req := worker.Request{
			RunID:   runID,
			Role:    role,
			Payload: st.ExecutionContext,
			Task:    firstActiveTask(st, role),
		}

		res, err := inv.Invoke(ctx, req)
		if err != nil {
			// Cancellation and attempt timeouts belong to the durable
			// wrapper, not the business error log.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			recordWorkerFailure(st, req, err.Error())
			logger.Warn("worker invocation failed",
				zap.String("run_id", runID),
				zap.String("role", string(role)),
				zap.Error(err))
			return nil
		}
		if res == nil || !res.Success {
			text := "worker reported failure"
			if res != nil && res.ErrorText != "" {
				text = res.ErrorText
			}
			recordWorkerFailure(st, req, text)
			logger.Warn("worker reported failure",
				zap.String("run_id", runID),
				zap.String("role", string(role)),
				zap.String("error", text))
			return nil
		}

		st.SetResult(role, res.Data)
		st.AddMessage(state.RoleSupervision, state.Message{
			Content:    fmt.Sprintf("Results from %s: %s stage completed", role, stage),
			SourceRole: role,
		})
		if req.Task != nil {
			st.CompleteTask(req.Task.ID, res.Data)
		}
		return nil
	}
}

func recordWorkerFailure(st *state.State, req worker.Request, text string) {
	st.AddError(req.Role, text)
	if req.Task != nil {
		st.FailTask(req.Task.ID, text)
	}
	st.TransitionStage(state.StageSupervision)
}

func firstActiveTask(st *state.State, role state.Role) *state.Task {
	for _, task := range st.ActiveTasks {
		if task.Role == role {
			return task
		}
	}
	return nil
}

// supervisorExecutor reviews the run: it scores result coverage and stores
// the decision in ResultsByRole[supervision]. The router reads the stored
// decision and never recomputes it.
func supervisorExecutor(policy ScorePolicy, logger *zap.Logger) ExecutorFunc {
	return func(ctx context.Context, st *state.State) error {
		if !state.CanTransition(st.Stage, state.StageSupervision) {
			return types.NewError(types.ErrInvalidTransition,
				fmt.Sprintf("cannot enter stage %s from %s", state.StageSupervision, st.Stage))
		}
		st.TransitionStage(state.StageSupervision)

		action, score := policy.NextAction(st)
		st.SetResult(state.RoleSupervision, map[string]any{
			"next_action":      action,
			"completion_score": score,
			"reviewed_at":      time.Now().UTC().Format(time.RFC3339),
		})
		st.AddMessage(state.RoleSupervision, state.Message{
			Content:    fmt.Sprintf("Supervisor decision: %s (score %.2f)", action, score),
			SourceRole: state.RoleSupervision,
		})

		runID, _ := ctxkeys.RunID(ctx)
		logger.Info("supervisor decision",
			zap.String("run_id", runID),
			zap.String("next_action", action),
			zap.Float64("completion_score", score))
		return nil
	}
}

// completionExecutor performs the terminal transition and writes the final
// output bundle into the execution context.
func completionExecutor(logger *zap.Logger) ExecutorFunc {
	return func(ctx context.Context, st *state.State) error {
		if !state.CanTransition(st.Stage, state.StageComplete) {
			return types.NewError(types.ErrInvalidTransition,
				fmt.Sprintf("cannot enter stage %s from %s", state.StageComplete, st.Stage))
		}

		results := make(map[string]any)
		for _, role := range state.Roles() {
			if payload := st.Result(role); len(payload) > 0 {
				results[string(role)] = payload
			}
		}
		score, _ := st.Result(state.RoleSupervision)["completion_score"].(float64)

		st.ExecutionContext["final_output"] = map[string]any{
			"status":           string(state.StageComplete),
			"completion_score": score,
			"results":          results,
			"completed_tasks":  len(st.CompletedTasks),
			"failed_tasks":     len(st.FailedTasks),
			"finished_at":      time.Now().UTC().Format(time.RFC3339),
		}
		st.TransitionStage(state.StageComplete)

		runID, _ := ctxkeys.RunID(ctx)
		logger.Info("run complete",
			zap.String("run_id", runID),
			zap.Float64("completion_score", score),
			zap.Int("completed_tasks", len(st.CompletedTasks)))
		return nil
	}
}

// errorExecutor is the error exit: it pins the run at the terminal error
// stage. The transition is unconditional — every non-terminal stage may fall
// into error.
func errorExecutor(logger *zap.Logger) ExecutorFunc {
	return func(ctx context.Context, st *state.State) error {
		st.TransitionStage(state.StageError)

		runID, _ := ctxkeys.RunID(ctx)
		logger.Warn("run entered error stage", zap.String("run_id", runID))
		return nil
	}
}
