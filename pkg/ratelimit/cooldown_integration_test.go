//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/HariharPal/LC-Fetch/internal/testutil"
)

// Two limiters sharing one Redis scope back off together after a single 429.
func TestRedisCooldownSharedAcrossLimiters(t *testing.T) {
	client := testutil.StartRedis(t)
	ctx := context.Background()

	storeA := NewRedisCooldown(client, "leetcode.com")
	storeB := NewRedisCooldown(client, "leetcode.com")

	tracker := NewTracker(storeA, quietLogger())
	headers := http.Header{"Retry-After": []string{"1"}}
	if err := tracker.UpdateFromHeaders(ctx, http.StatusTooManyRequests, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	limiter := NewLimiter(0, quietLogger()).WithCooldown(storeB)
	start := time.Now()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("Acquire returned after %v, want to honour the shared cooldown", elapsed)
	}
}
