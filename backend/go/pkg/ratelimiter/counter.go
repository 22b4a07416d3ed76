package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowCounter admits up to limit requests per window. Counts reset at
// the window boundary, so bursts that straddle it can briefly exceed the
// limit.
type FixedWindowCounter struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	mu          sync.Mutex
}

var _ RateLimiter = (*FixedWindowCounter)(nil)

// NewFixedWindowCounter creates a counter admitting limit requests per window.
func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	return &FixedWindowCounter{
		limit:       limit,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow reports whether the current window still has room.
func (fw *FixedWindowCounter) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := time.Now()
	if now.After(fw.windowStart.Add(fw.window)) {
		fw.count = 0
		fw.windowStart = now
	}

	if fw.count < fw.limit {
		fw.count++
		return true
	}
	return false
}
