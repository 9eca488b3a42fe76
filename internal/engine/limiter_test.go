package engine

import (
	"testing"
	"time"
)

func TestLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewLimiter(6, func() time.Time { return now })

	for i := range 6 {
		decision := limiter.Allow("k")
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if decision.Remaining != 5-i {
			t.Fatalf("request %d: remaining %d", i, decision.Remaining)
		}
	}
	denied := limiter.Allow("k")
	if denied.Allowed {
		t.Fatal("seventh request should be denied")
	}
	if denied.RetryAfter != 10*time.Second {
		t.Fatalf("unexpected retry after %v", denied.RetryAfter)
	}

	now = now.Add(10 * time.Second)
	if !limiter.Allow("k").Allowed {
		t.Fatal("expected a token after one interval")
	}
	if limiter.Allow("k").Allowed {
		t.Fatal("only one token should have refilled")
	}
}

func TestLimiterDeniedRequestsDoNotConsume(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewLimiter(1, func() time.Time { return now })
	limiter.Allow("k")
	for range 5 {
		if limiter.Allow("k").Allowed {
			t.Fatal("expected denial")
		}
	}
	now = now.Add(time.Minute)
	if !limiter.Allow("k").Allowed {
		t.Fatal("denied requests must not push the refill back")
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewLimiter(5, func() time.Time { return now })
	limiter.Allow("old")
	now = now.Add(20 * time.Minute)
	limiter.Allow("fresh")

	if removed := limiter.Prune(DefaultLimiterIdle); removed != 1 {
		t.Fatalf("expected one bucket pruned, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Fatalf("expected one bucket left, got %d", limiter.Len())
	}
}
