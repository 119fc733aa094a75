// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Default command rate limiting values.
const (
	// DefaultCommandBurst is the number of commands a connection can send in a
	// burst before rate limiting kicks in.
	DefaultCommandBurst = 10

	// DefaultCommandRate is the sustained number of commands per second.
	DefaultCommandRate = 2.0

	// MinCommandRate ensures the refill rate is at least 0.1 tokens/second.
	MinCommandRate = 0.1

	// DefaultCleanupInterval is how often buckets of vanished connections are
	// swept.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultBucketMaxAge is how long an untouched bucket is kept.
	DefaultBucketMaxAge = time.Hour
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Burst is the maximum number of commands allowed in a burst.
	// Defaults to DefaultCommandBurst if zero or negative.
	Burst int

	// Rate is the number of commands per second refilled.
	// Defaults to DefaultCommandRate if zero or negative.
	Rate float64

	// CleanupInterval defaults to DefaultCleanupInterval if zero.
	CleanupInterval time.Duration

	// BucketMaxAge defaults to DefaultBucketMaxAge if zero.
	BucketMaxAge time.Duration
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter limits commands per connection with a token bucket. It is safe
// for concurrent use. Call Close to stop the cleanup goroutine.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[ulid.ULID]*bucket
	burst   int
	rate    float64
	maxAge  time.Duration
	now     func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	gauge prometheus.Gauge
}

// NewRateLimiter creates a rate limiter. When reg is non-nil a gauge of
// tracked connections is registered with it.
func NewRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultCommandBurst
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = DefaultCommandRate
	}
	rate = max(rate, MinCommandRate)

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxAge := cfg.BucketMaxAge
	if maxAge <= 0 {
		maxAge = DefaultBucketMaxAge
	}

	rl := &RateLimiter{
		buckets:  make(map[ulid.ULID]*bucket),
		burst:    burst,
		rate:     rate,
		maxAge:   maxAge,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	if reg != nil {
		rl.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventhub_ratelimiter_connections",
			Help: "Current number of connections tracked by the command rate limiter",
		})
		reg.MustRegister(rl.gauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(interval)

	return rl
}

// Allow consumes one token for the connection. When no token is available it
// returns false and the milliseconds until the next one.
func (rl *RateLimiter) Allow(id ulid.ULID) (allowed bool, cooldownMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[id]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastCheck: now}
		rl.buckets[id] = b
		rl.updateGauge()
	}

	b.tokens = min(b.tokens+now.Sub(b.lastCheck).Seconds()*rl.rate, float64(rl.burst))
	b.lastCheck = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}

	deficit := 1.0 - b.tokens
	return false, int64(deficit / rl.rate * 1000)
}

// Forget drops the bucket of a closed connection.
func (rl *RateLimiter) Forget(id ulid.ULID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, id)
	rl.updateGauge()
}

// Len returns the number of tracked connections.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
	rl.wg.Wait()
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep removes buckets untouched for longer than maxAge.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.maxAge)
	for id, b := range rl.buckets {
		if b.lastCheck.Before(cutoff) {
			delete(rl.buckets, id)
		}
	}
	rl.updateGauge()
}

// updateGauge must be called with mu held.
func (rl *RateLimiter) updateGauge() {
	if rl.gauge != nil {
		rl.gauge.Set(float64(len(rl.buckets)))
	}
}
