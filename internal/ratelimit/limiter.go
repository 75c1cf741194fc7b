package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMax    = 10
	DefaultWindow = time.Second
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type bucket struct {
	windowStart time.Time
	count       int
}

// Limiter is a fixed-window request counter keyed by identity.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLimiter creates a limiter admitting max requests per window for each key.
func NewLimiter(max int, window time.Duration, now func() time.Time) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{max: max, window: window, buckets: make(map[string]*bucket), now: now}
}

// Allow counts one request for key and reports whether it is admitted.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(l.window)) {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	resetAt := b.windowStart.Add(l.window)

	if b.count >= l.max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: resetAt.Sub(now)}
	}
	b.count++
	return Decision{Allowed: true, Remaining: l.max - b.count, ResetAt: resetAt}
}

// Sweep drops buckets whose window has elapsed and returns how many were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.windowStart.Add(l.window)) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
