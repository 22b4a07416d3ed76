package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

// admit runs Allow n times and returns how many were admitted.
func admit(l RateLimiter, n int) int {
	allowed := 0
	for i := 0; i < n; i++ {
		if l.Allow() {
			allowed++
		}
	}
	return allowed
}

func TestTokenBucketExhaustion(t *testing.T) {
	// Rate is negligible, so the test only sees the initial burst capacity.
	tb := NewTokenBucket(0.0001, 5)

	if got := admit(tb, 8); got != 5 {
		t.Errorf("Expected 5 admitted, got %d", got)
	}
	if tb.Allow() {
		t.Error("Expected rejection after the bucket is drained")
	}
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(1000, 1)

	if !tb.Allow() {
		t.Fatal("Expected the initial token")
	}
	if tb.Allow() {
		t.Fatal("Expected rejection before refill")
	}

	time.Sleep(50 * time.Millisecond) // at 1000/s this refills many times over
	if !tb.Allow() {
		t.Error("Expected a token after refill")
	}
}

func TestLeakyBucketExhaustion(t *testing.T) {
	lb := NewLeakyBucket(0.0001, 3)

	if got := admit(lb, 5); got != 3 {
		t.Errorf("Expected 3 admitted, got %d", got)
	}
}

func TestLeakyBucketDrains(t *testing.T) {
	lb := NewLeakyBucket(1000, 1)

	if !lb.Allow() {
		t.Fatal("Expected room in the empty bucket")
	}
	if lb.Allow() {
		t.Fatal("Expected rejection while full")
	}

	time.Sleep(50 * time.Millisecond)
	if !lb.Allow() {
		t.Error("Expected room after draining")
	}
}

func TestFixedWindowCounterLimit(t *testing.T) {
	fw := NewFixedWindowCounter(4, time.Hour)

	if got := admit(fw, 10); got != 4 {
		t.Errorf("Expected 4 admitted in the window, got %d", got)
	}
}

func TestFixedWindowCounterResets(t *testing.T) {
	fw := NewFixedWindowCounter(1, 50*time.Millisecond)

	if !fw.Allow() {
		t.Fatal("Expected the first request admitted")
	}
	if fw.Allow() {
		t.Fatal("Expected rejection inside the window")
	}

	time.Sleep(120 * time.Millisecond)
	if !fw.Allow() {
		t.Error("Expected admission in the next window")
	}
}

func TestSlidingWindowLogLimit(t *testing.T) {
	sl := NewSlidingWindowLog(3, time.Hour)

	if got := admit(sl, 7); got != 3 {
		t.Errorf("Expected 3 admitted in the window, got %d", got)
	}
}

func TestSlidingWindowLogEvictsOldEntries(t *testing.T) {
	sl := NewSlidingWindowLog(1, 50*time.Millisecond)

	if !sl.Allow() {
		t.Fatal("Expected the first request admitted")
	}
	if sl.Allow() {
		t.Fatal("Expected rejection inside the window")
	}

	time.Sleep(120 * time.Millisecond)
	if !sl.Allow() {
		t.Error("Expected admission after the logged entry aged out")
	}
}

func TestSlidingWindowCounterLimit(t *testing.T) {
	sc := NewSlidingWindowCounter(5, time.Hour, 10)

	if got := admit(sc, 9); got != 5 {
		t.Errorf("Expected 5 admitted in the window, got %d", got)
	}
}

func TestSlidingWindowCounterDefaultsBuckets(t *testing.T) {
	sc := NewSlidingWindowCounter(2, time.Hour, 0)

	if got := admit(sc, 4); got != 2 {
		t.Errorf("Expected 2 admitted with defaulted buckets, got %d", got)
	}
}

func TestSlidingWindowCounterExpires(t *testing.T) {
	sc := NewSlidingWindowCounter(1, 100*time.Millisecond, 10)

	if !sc.Allow() {
		t.Fatal("Expected the first request admitted")
	}
	if sc.Allow() {
		t.Fatal("Expected rejection inside the window")
	}

	time.Sleep(250 * time.Millisecond) // past the full window, all buckets age out
	if !sc.Allow() {
		t.Error("Expected admission after the window passed")
	}
}

func TestTokenBucketConcurrentAccess(t *testing.T) {
	tb := NewTokenBucket(0.0001, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if tb.Allow() {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("Expected exactly 100 admitted across goroutines, got %d", allowed)
	}
}
