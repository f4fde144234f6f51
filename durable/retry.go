// Package durable wraps stage execution in retry-with-backoff semantics and
// keeps attempts idempotent by running each one against a fresh clone of the
// coordination state.
package durable

import (
	"math"
	"math/rand"
	"time"
)

// Policy 定义持久化执行的重试策略
// 遵循 KISS 原则：简单但功能完整的重试策略
type Policy struct {
	MaxAttempts    int           // 最大尝试次数（含首次执行）
	InitialBackoff time.Duration // 初始退避时间
	MaxBackoff     time.Duration // 最大退避时间
	Multiplier     float64       // 退避倍增因子（指数退避）
	Jitter         bool          // 是否添加随机抖动（防止雪崩）
	AttemptTimeout time.Duration // 单次尝试的超时（0 表示不限制）

	// OnRetry 重试回调，在每次退避后重新执行前调用
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultPolicy 返回默认的执行策略
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		AttemptTimeout: 10 * time.Minute,
	}
}

// normalize 参数校验，非法值回退到默认
func (p *Policy) normalize() {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 1 * time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 60 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
}

// Backoff 计算第 attempt 次失败后的退避时间（attempt 从 1 开始计数）
// 使用指数退避算法 + 可选的随机抖动
func (p *Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// 指数退避：backoff = initial * multiplier^(attempt-1)
	backoff := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))

	// 限制最大退避
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// 添加随机抖动（±25%）
	// 目的：防止多个运行同时重试导致的雪崩效应
	if p.Jitter {
		jitter := backoff * 0.25
		backoff = backoff + (rand.Float64()*2-1)*jitter
	}

	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}
