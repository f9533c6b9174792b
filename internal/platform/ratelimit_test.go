package platform

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenLimited(t *testing.T) {
	rl := NewRateLimiter(map[string]LimitConfig{
		Codeforces: {RequestsPerSecond: 1, Burst: 2},
	}, 50*time.Millisecond)

	ctx := context.Background()

	// burst permits are immediate
	for i := 0; i < 2; i++ {
		if err := rl.Acquire(ctx, Codeforces); err != nil {
			t.Fatalf("burst acquire %d failed: %v", i, err)
		}
	}

	// queue is deeper than the bounded wait
	err := rl.Acquire(ctx, Codeforces)
	if err == nil {
		t.Fatal("expected rate limit error after burst exhausted")
	}
	if KindOf(err) != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", KindOf(err))
	}
}

func TestRateLimiter_PlatformsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(map[string]LimitConfig{
		Codeforces: {RequestsPerSecond: 1, Burst: 1},
		LeetCode:   {RequestsPerSecond: 2, Burst: 10},
	}, 50*time.Millisecond)

	ctx := context.Background()

	// saturate codeforces
	if err := rl.Acquire(ctx, Codeforces); err != nil {
		t.Fatalf("first codeforces acquire failed: %v", err)
	}
	if err := rl.Acquire(ctx, Codeforces); err == nil {
		t.Fatal("expected codeforces to be saturated")
	}

	// leetcode must still have immediate permits
	start := time.Now()
	if err := rl.Acquire(ctx, LeetCode); err != nil {
		t.Fatalf("leetcode acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("leetcode acquire blocked for %v behind codeforces traffic", elapsed)
	}
}

func TestRateLimiter_CallerDeadlineReportedAsTimeout(t *testing.T) {
	rl := NewRateLimiter(map[string]LimitConfig{
		Codeforces: {RequestsPerSecond: 1, Burst: 1},
	}, time.Second)

	ctx := context.Background()
	if err := rl.Acquire(ctx, Codeforces); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	expiredCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	err := rl.Acquire(expiredCtx, Codeforces)
	if err == nil {
		t.Fatal("expected error on expired context")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("expected timeout, got %s", KindOf(err))
	}
}

func TestRateLimiter_UnknownPlatformGetsDefaultBucket(t *testing.T) {
	rl := NewRateLimiter(map[string]LimitConfig{}, 50*time.Millisecond)

	if err := rl.Acquire(context.Background(), "something-new"); err != nil {
		t.Fatalf("expected conservative default bucket, got %v", err)
	}
}
