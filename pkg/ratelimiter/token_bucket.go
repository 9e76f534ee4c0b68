package ratelimiter

import (
	"sync"
	"time"
)

// TokenBucket is a RateLimiter based on the token bucket algorithm.
// Tokens accrue continuously at a fixed rate up to the bucket's capacity,
// so short bursts up to the capacity pass through unthrottled.
type TokenBucket struct {
	rate     float64 // tokens added per second
	capacity float64

	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
}

// NewTokenBucket creates a full bucket that refills at rate tokens per
// second and holds at most capacity tokens.
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	return &TokenBucket{
		rate:     rate,
		capacity: float64(capacity),
		tokens:   float64(capacity),
		lastFill: time.Now(),
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(tb.lastFill); elapsed > 0 {
		tb.tokens += elapsed.Seconds() * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastFill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}
