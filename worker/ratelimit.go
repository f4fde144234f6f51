package worker

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps an invoker with a token-bucket limiter. Invoke blocks
// until a token is available or the context is cancelled. Health probes are
// not rate limited.
type RateLimited struct {
	inner   Invoker
	limiter *rate.Limiter
}

// NewRateLimited allows rps invocations per second with the given burst.
func NewRateLimited(inner Invoker, rps float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Invoke implements Invoker.
func (r *RateLimited) Invoke(ctx context.Context, req Request) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Invoke(ctx, req)
}

// Healthy implements HealthChecker by delegating when the wrapped invoker
// supports it.
func (r *RateLimited) Healthy(ctx context.Context) error {
	if hc, ok := r.inner.(HealthChecker); ok {
		return hc.Healthy(ctx)
	}
	return nil
}
