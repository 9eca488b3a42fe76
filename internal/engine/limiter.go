package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRequestsPerMinute is the per-key budget of the analyze endpoint.
	DefaultRequestsPerMinute = 10
	// DefaultLimiterIdle is how long an unused key keeps its bucket.
	DefaultLimiterIdle = 10 * time.Minute
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter keeps one token bucket per API key.
type Limiter struct {
	mu        sync.Mutex
	perMinute int
	now       func() time.Time
	buckets   map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows perMinute requests per key with bursts up to perMinute.
func NewLimiter(perMinute int, now func() time.Time) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		perMinute: perMinute,
		now:       now,
		buckets:   make(map[string]*bucket),
	}
}

// PerMinute returns the configured budget.
func (l *Limiter) PerMinute() int {
	return l.perMinute
}

// Allow consumes one token for key when available.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.interval(), l.perMinute)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{ResetAt: now.Add(time.Minute), RetryAfter: time.Minute}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{
			Remaining:  0,
			RetryAfter: delay,
			ResetAt:    now.Add(delay),
		}
	}
	tokens := b.limiter.TokensAt(now)
	return Decision{
		Allowed:   true,
		Remaining: max(0, int(math.Floor(tokens))),
		ResetAt:   now.Add(l.refill(tokens)),
	}
}

// Prune drops buckets idle for longer than idle and returns how many went.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Janitor prunes idle buckets every interval until ctx is done.
func (l *Limiter) Janitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Prune(DefaultLimiterIdle)
		}
	}
}

func (l *Limiter) interval() rate.Limit {
	return rate.Every(time.Minute / time.Duration(l.perMinute))
}

// refill is the time until a bucket holding tokens is full again.
func (l *Limiter) refill(tokens float64) time.Duration {
	missing := float64(l.perMinute) - tokens
	if missing <= 0 {
		return 0
	}
	per := time.Minute / time.Duration(l.perMinute)
	return time.Duration(missing * float64(per))
}
