package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiterWith(rate.Every(time.Hour), 3)

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	rl := NewRateLimiterWith(rate.Every(time.Hour), 1)

	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))
	// A different caller has its own bucket.
	require.True(t, rl.Allow("b"))
}

func TestRateLimiterEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiterWith(rate.Every(time.Hour), 1)
	rl.maxIdle = time.Millisecond

	rl.Allow("stale")
	time.Sleep(5 * time.Millisecond)
	rl.Allow("fresh")

	rl.mu.Lock()
	_, ok := rl.limits["stale"]
	rl.mu.Unlock()
	require.False(t, ok)
}
