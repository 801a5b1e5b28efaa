package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key (client address, chat id).
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter allows requestsPerMinute per key, with bursts up to burst.
func NewLimiter(requestsPerMinute float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerMinute / 60.0),
		burst:    burst,
	}
}

// Every allows one event per interval per key.
func Every(interval time.Duration, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(interval),
		burst:    burst,
	}
}

// Get returns the bucket for key, creating it on first use.
func (l *Limiter) Get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether an event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	return l.Get(key).Allow()
}

// Wait blocks until an event for key is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.Get(key).Wait(ctx)
}

// Tokens returns the tokens currently available to key.
func (l *Limiter) Tokens(key string) float64 {
	return l.Get(key).Tokens()
}

// Burst is the bucket size.
func (l *Limiter) Burst() int { return l.burst }
