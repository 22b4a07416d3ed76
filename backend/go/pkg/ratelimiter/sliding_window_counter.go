package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindowCounter divides the window into buckets and sums their counts,
// trading the per-request memory of the log for approximate accuracy at
// bucket granularity.
type SlidingWindowCounter struct {
	limit      int
	window     time.Duration
	numBuckets int
	bucketSize time.Duration
	buckets    []int
	current    int // index of the bucket receiving new requests
	lastSlide  time.Time
	mu         sync.Mutex
}

var _ RateLimiter = (*SlidingWindowCounter)(nil)

// NewSlidingWindowCounter creates a bucketed limiter admitting limit requests
// per window. A non-positive numBuckets falls back to 10.
func NewSlidingWindowCounter(limit int, window time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	return &SlidingWindowCounter{
		limit:      limit,
		window:     window,
		numBuckets: numBuckets,
		bucketSize: window / time.Duration(numBuckets),
		buckets:    make([]int, numBuckets),
		lastSlide:  time.Now(),
	}
}

// slide advances the window, zeroing every bucket that aged out since the
// last call. Caller holds the lock.
func (sc *SlidingWindowCounter) slide() {
	now := time.Now()
	steps := int(now.Sub(sc.lastSlide) / sc.bucketSize)
	if steps <= 0 {
		return
	}

	if steps >= sc.numBuckets {
		for i := range sc.buckets {
			sc.buckets[i] = 0
		}
	} else {
		for i := 1; i <= steps; i++ {
			sc.buckets[(sc.current+i)%sc.numBuckets] = 0
		}
	}
	sc.current = (sc.current + steps) % sc.numBuckets
	sc.lastSlide = now
}

// Allow admits the request if the bucket counts sum below the limit.
func (sc *SlidingWindowCounter) Allow() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.slide()

	total := 0
	for _, n := range sc.buckets {
		total += n
	}

	if total < sc.limit {
		sc.buckets[sc.current]++
		return true
	}
	return false
}
