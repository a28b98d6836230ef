// Package server throttles inbound frames per connection with a token
// bucket, shielding the hub from clients that flood the relay.
package server

import (
	"sync"
	"time"
)

// frameLimiter admits up to Burst frames immediately and refills at
// Burst-per-RefillInterval afterward. One limiter per connection; the read
// pump consults it before dispatching a frame.
type frameLimiter struct {
	mu         sync.Mutex
	tokens     float64
	burst      float64
	perSecond  float64
	lastRefill time.Time
}

func newFrameLimiter(cfg RateLimitConfig) *frameLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &frameLimiter{
		tokens:     float64(burst),
		burst:      float64(burst),
		perSecond:  float64(burst) / interval.Seconds(),
		lastRefill: time.Now(),
	}
}

// allow reports whether the next frame may be processed, consuming one token
// when it is.
func (fl *frameLimiter) allow() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(fl.lastRefill).Seconds(); elapsed > 0 {
		fl.tokens = min(fl.burst, fl.tokens+elapsed*fl.perSecond)
	}
	fl.lastRefill = now

	if fl.tokens < 1 {
		return false
	}
	fl.tokens--
	return true
}
