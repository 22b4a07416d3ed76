package ratelimiter

import (
	"container/list"
	"sync"
	"time"
)

// SlidingWindowLog admits up to limit requests in any window-sized interval by
// logging individual request timestamps. Exact, at the cost of one list entry
// per admitted request.
type SlidingWindowLog struct {
	limit  int
	window time.Duration
	log    *list.List // time.Time entries, oldest first
	mu     sync.Mutex
}

var _ RateLimiter = (*SlidingWindowLog)(nil)

// NewSlidingWindowLog creates a log-based limiter admitting limit requests per
// window.
func NewSlidingWindowLog(limit int, window time.Duration) *SlidingWindowLog {
	return &SlidingWindowLog{
		limit:  limit,
		window: window,
		log:    list.New(),
	}
}

// Allow drops timestamps that fell out of the window and admits the request if
// the remaining count is under the limit.
func (sl *SlidingWindowLog) Allow() bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-sl.window)

	// Entries are appended in order, so eviction stops at the first
	// timestamp still inside the window.
	for e := sl.log.Front(); e != nil; {
		if !e.Value.(time.Time).Before(cutoff) {
			break
		}
		next := e.Next()
		sl.log.Remove(e)
		e = next
	}

	if sl.log.Len() < sl.limit {
		sl.log.PushBack(now)
		return true
	}
	return false
}
