// Package ratelimiter implements the admission-control algorithms the HTTP
// server can be configured with. All limiters are process-local and safe for
// concurrent use.
package ratelimiter

// RateLimiter admits or rejects one request per Allow call.
type RateLimiter interface {
	// Allow reports whether the request may proceed.
	Allow() bool
}
