package ratelimiter

import (
	"sync"
	"time"
)

// LeakyBucket admits requests while the bucket has room, draining at a fixed
// rate. Unlike the token bucket it smooths bursts into a steady outflow.
type LeakyBucket struct {
	rate     float64 // requests drained per second
	capacity float64
	level    float64
	lastLeak time.Time
	mu       sync.Mutex
}

var _ RateLimiter = (*LeakyBucket)(nil)

// NewLeakyBucket creates a bucket that drains at rate requests per second and
// queues at most capacity requests.
func NewLeakyBucket(rate float64, capacity int) *LeakyBucket {
	return &LeakyBucket{
		rate:     rate,
		capacity: float64(capacity),
		lastLeak: time.Now(),
	}
}

// Allow adds one request to the bucket if it fits.
func (lb *LeakyBucket) Allow() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()
	if drained := now.Sub(lb.lastLeak).Seconds() * lb.rate; drained > 0 {
		lb.level -= drained
		if lb.level < 0 {
			lb.level = 0
		}
		lb.lastLeak = now
	}

	if lb.level < lb.capacity {
		lb.level++
		return true
	}
	return false
}
