package resilience

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrRateLimited is returned when no token is available within MaxWait.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Name identifies the guarded unit or route.
	Name string
	// Rate is the number of calls admitted per second.
	Rate float64
	// Burst is the bucket size. Defaults to Rate rounded up, at least 1.
	Burst int
	// MaxWait is how long a call may queue for a token. 0 means reject
	// immediately.
	MaxWait time.Duration
}

// RateLimiter admits calls at a steady rate with bursts up to the bucket
// size.
type RateLimiter struct {
	config RateLimiterConfig

	mu     sync.Mutex
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10
	}
	if config.Burst <= 0 {
		config.Burst = max(1, int(math.Ceil(config.Rate)))
	}
	return &RateLimiter{
		config: config,
		tokens: float64(config.Burst),
		last:   time.Now(),
		now:    time.Now,
	}
}

// Name returns the configured name.
func (rl *RateLimiter) Name() string { return rl.config.Name }

// Allow takes a token if one is available now.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait takes a token, queueing up to MaxWait for one. A call that would
// queue longer fails with ErrRateLimited without consuming anything; one
// whose context ends while queued returns the context error and gives its
// token back.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	delay, ok := rl.reserve()
	if !ok {
		return ErrRateLimited
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.mu.Lock()
		rl.tokens++
		rl.mu.Unlock()
		return ctx.Err()
	}
}

// reserve takes a token, possibly from the future, and reports how long the
// caller must wait before using it.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	delay := time.Duration((1 - rl.tokens) / rl.config.Rate * float64(time.Second))
	if delay > rl.config.MaxWait {
		return 0, false
	}
	rl.tokens--
	return delay, true
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens = math.Min(float64(rl.config.Burst), rl.tokens+now.Sub(rl.last).Seconds()*rl.config.Rate)
	rl.last = now
}

// Tokens returns the tokens currently in the bucket. It is negative while
// callers are queued.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}
