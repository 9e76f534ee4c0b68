package ratelimiter

// RateLimiter decides whether a request may proceed.
type RateLimiter interface {
	// Allow returns true when the request fits within the limit.
	Allow() bool
}
