// Package ratelimit provides per-client admission control backed by a
// token bucket per client key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter owns one token bucket per client key. Buckets are created
// lazily on first use and refill continuously at Rate tokens per second
// up to Capacity. All refill accounting happens inside Allow; there are
// no background timers.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rate     rate.Limit
	capacity int
}

// RateLimitedError is returned when a client's bucket has no tokens left.
// RetryAfter estimates how long until a token becomes available.
type RateLimitedError struct {
	ClientKey  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return "rate limited: client " + e.ClientKey + " must retry in " + e.RetryAfter.String()
}

// New creates a Limiter with the given refill rate (tokens per second)
// and bucket capacity.
func New(tokensPerSecond float64, capacity int) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*rate.Limiter),
		rate:     rate.Limit(tokensPerSecond),
		capacity: capacity,
	}
}

// Allow consumes one token from the client's bucket if available.
// It returns false, without consuming anything, when the bucket is empty.
func (l *Limiter) Allow(clientKey string) bool {
	return l.bucket(clientKey).Allow()
}

// RetryAfter estimates how long until the client's bucket holds at least
// one token. It returns 0 for unknown keys or when a token is already
// available.
func (l *Limiter) RetryAfter(clientKey string) time.Duration {
	l.mu.Lock()
	b, ok := l.buckets[clientKey]
	l.mu.Unlock()
	if !ok {
		return 0
	}

	// Reserving and immediately cancelling at the same instant leaves the
	// bucket unchanged while exposing the current deficit.
	now := time.Now()
	r := b.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// bucket returns the client's bucket, creating it (full) on first use.
// Different keys never contend beyond the lookup itself: each bucket
// serializes its own refill and spend internally.
func (l *Limiter) bucket(clientKey string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[clientKey]; ok {
		return b
	}
	b := rate.NewLimiter(l.rate, l.capacity)
	l.buckets[clientKey] = b
	return b
}
