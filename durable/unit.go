package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/state"
	"github.com/BaSui01/coordflow/types"
)

// UnitFunc is one execution unit: a stage's work applied to a coordination
// state. The state it receives is a private clone; mutations become visible
// only when the unit returns nil.
type UnitFunc func(ctx context.Context, st *state.State) error

// Runner executes units under the retry policy.
type Runner struct {
	policy *Policy
	logger *zap.Logger
}

// NewRunner creates a runner. A nil policy selects DefaultPolicy.
func NewRunner(policy *Policy, logger *zap.Logger) *Runner {
	if policy == nil {
		policy = DefaultPolicy()
	}
	policy.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		policy: policy,
		logger: logger.With(zap.String("component", "durable_runner")),
	}
}

// Policy returns the runner's effective policy.
func (r *Runner) Policy() *Policy { return r.policy }

// ExecuteUnit 以幂等方式执行一个单元：每次尝试都在状态的深拷贝上进行，
// 失败尝试的部分变更随拷贝一起丢弃，只有成功尝试的拷贝被提交返回。
func (r *Runner) ExecuteUnit(ctx context.Context, name string, st *state.State, fn UnitFunc) (*state.State, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		// 第一次执行不退避
		if attempt > 1 {
			backoff := r.policy.Backoff(attempt - 1)

			r.logger.Debug("重试执行单元",
				zap.String("unit", name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, backoff)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("unit %s aborted during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		clone := st.Clone()
		lastErr = r.runAttempt(ctx, name, clone, fn)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("执行单元重试成功",
					zap.String("unit", name),
					zap.Int("attempt", attempt),
				)
			}
			return clone, nil
		}

		if !retryable(lastErr) {
			r.logger.Debug("执行单元错误不可重试",
				zap.String("unit", name),
				zap.Error(lastErr),
			)
			return nil, lastErr
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("unit %s aborted: %w", name, ctx.Err())
		}
	}

	r.logger.Warn("执行单元重试次数耗尽",
		zap.String("unit", name),
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, types.NewError(types.ErrRetryExhausted,
		fmt.Sprintf("unit %s failed after %d attempts", name, r.policy.MaxAttempts)).
		WithCause(lastErr)
}

// runAttempt 执行单次尝试，附加超时并吸收 panic
func (r *Runner) runAttempt(ctx context.Context, name string, clone *state.State, fn UnitFunc) (err error) {
	attemptCtx := ctx
	if r.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = types.NewError(types.ErrStagePanic,
				fmt.Sprintf("unit %s panicked: %v", name, rec)).WithRetryable(true)
		}
	}()

	if err := fn(attemptCtx, clone); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && attemptCtx.Err() != nil && ctx.Err() == nil {
			return types.NewError(types.ErrStageTimeout,
				fmt.Sprintf("unit %s exceeded attempt timeout", name)).
				WithRetryable(true).WithCause(err)
		}
		return err
	}
	return nil
}

// retryable 判定错误是否可重试：结构化错误看 Retryable 标记，
// 普通错误视为瞬时故障可重试。
func retryable(err error) bool {
	var te *types.Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
