package platform

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimitConfig is one platform's throttle: sustained requests per second plus
// burst headroom.
type LimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultLimits mirrors the upstream APIs' published or observed limits.
func DefaultLimits() map[string]LimitConfig {
	return map[string]LimitConfig{
		Codeforces:    {RequestsPerSecond: 1, Burst: 5},
		LeetCode:      {RequestsPerSecond: 2, Burst: 10},
		CodeChef:      {RequestsPerSecond: 1, Burst: 5},
		AtCoder:       {RequestsPerSecond: 1, Burst: 5},
		GitHub:        {RequestsPerSecond: 0.5, Burst: 10},
		StackOverflow: {RequestsPerSecond: 1, Burst: 5},
	}
}

// RateLimiter gates outbound calls per platform. Buckets are fully
// independent: saturating one platform never delays another.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[string]LimitConfig
	maxWait  time.Duration
}

func NewRateLimiter(limits map[string]LimitConfig, maxWait time.Duration) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	if maxWait <= 0 {
		maxWait = 15 * time.Second
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limits:   limits,
		maxWait:  maxWait,
	}
}

func (rl *RateLimiter) limiterFor(platformID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters[platformID]
	if !ok {
		cfg, ok := rl.limits[platformID]
		if !ok {
			cfg = LimitConfig{RequestsPerSecond: 1, Burst: 5} // conservative default
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		rl.limiters[platformID] = lim
	}
	return lim
}

// Acquire blocks until a permit is available, up to the bounded wait. A queue
// deeper than the wait window is reported as rate_limited instead of waiting
// indefinitely.
func (rl *RateLimiter) Acquire(ctx context.Context, platformID string) error {
	lim := rl.limiterFor(platformID)

	waitCtx, cancel := context.WithTimeout(ctx, rl.maxWait)
	defer cancel()

	if err := lim.Wait(waitCtx); err != nil {
		// distinguish caller cancellation from queue overflow
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Errf(KindTimeout, "%s: deadline while waiting for permit", platformID)
			}
			return ctx.Err()
		}
		return Errf(KindRateLimited, "%s: rate limit queue exceeded %s", platformID, rl.maxWait)
	}
	return nil
}
