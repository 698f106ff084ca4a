package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a budget of requests per window and is safe for
// concurrent use. Callers that exceed the budget are delayed, never dropped.
type Limiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	requests    int
	window      time.Duration
	lastAllowed time.Time
}

// New creates a limiter allowing requests actions per window. The whole
// budget may be spent in a burst. A non-positive budget or window disables
// limiting.
func New(requests int, window time.Duration) *Limiter {
	l := &Limiter{
		requests: requests,
		window:   window,
	}
	l.limiter = l.newRateLimiter()
	return l
}

func (l *Limiter) newRateLimiter() *rate.Limiter {
	if l.requests <= 0 || l.window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(l.window/time.Duration(l.requests)), l.requests)
}

func (l *Limiter) current() *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter
}

func (l *Limiter) markAllowed() {
	l.mu.Lock()
	l.lastAllowed = time.Now()
	l.mu.Unlock()
}

// Wait blocks until the next action fits in the budget or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.current().Wait(ctx); err != nil {
		return err
	}
	l.markAllowed()
	return nil
}

// Allow checks if an action is allowed at this time without blocking.
// Returns true if allowed (and consumes budget), or false with the
// remaining wait duration if rate-limited.
func (l *Limiter) Allow() (bool, time.Duration) {
	r := l.current().Reserve()
	if !r.OK() {
		return false, l.Interval()
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	l.markAllowed()
	return true, 0
}

// Reset restores the full budget, allowing the next actions immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.limiter = l.newRateLimiter()
	l.lastAllowed = time.Time{}
	l.mu.Unlock()
}

// TimeSinceLastAllowed returns the duration since the last allowed action.
// Returns a very large duration if no action has been allowed yet.
func (l *Limiter) TimeSinceLastAllowed() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastAllowed.IsZero() {
		return time.Duration(1<<63 - 1) // Max duration
	}
	return time.Since(l.lastAllowed)
}

// Interval returns the steady-state spacing between actions.
func (l *Limiter) Interval() time.Duration {
	if l.requests <= 0 || l.window <= 0 {
		return 0
	}
	return l.window / time.Duration(l.requests)
}

// Budget returns the configured requests per window.
func (l *Limiter) Budget() (int, time.Duration) {
	return l.requests, l.window
}
