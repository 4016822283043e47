package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller. Buckets for idle callers
// are dropped after a while so the map cannot grow without bound.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]*entry
	rps     rate.Limit
	burst   int
	maxIdle time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing 10 requests per second with a
// burst of 20 per caller.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWith(rate.Every(time.Second/10), 20)
}

// NewRateLimiterWith creates a limiter with explicit per-caller settings.
func NewRateLimiterWith(rps rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limits:  make(map[string]*entry),
		rps:     rps,
		burst:   burst,
		maxIdle: 10 * time.Minute,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if e, ok := rl.limits[key]; ok {
		e.lastSeen = now
		return e.limiter
	}

	// Piggyback idle cleanup on misses instead of running a goroutine.
	for k, e := range rl.limits {
		if now.Sub(e.lastSeen) > rl.maxIdle {
			delete(rl.limits, k)
		}
	}

	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.limits[key] = &entry{limiter: limiter, lastSeen: now}
	return limiter
}

// Allow reports whether a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait blocks until a request is allowed or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}
