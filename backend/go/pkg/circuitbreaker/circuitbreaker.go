// Package circuitbreaker implements the circuit breaker pattern for guarding
// calls to failing downstreams. The breaker trips open after a run of
// consecutive failures, blocks calls for a timeout, then admits trial
// requests until enough succeed to close it again.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker's position in its lifecycle.
type State int

const (
	// Closed admits all requests.
	Closed State = iota
	// Open rejects all requests immediately.
	Open
	// HalfOpen admits trial requests to probe for recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned by Execute while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker wraps calls to a protected downstream.
type CircuitBreaker interface {
	// Execute runs req unless the breaker is open.
	Execute(req func() (interface{}, error)) (interface{}, error)
	// State returns the breaker's current state.
	State() State
}

type breaker struct {
	failureThreshold uint32 // consecutive failures that trip the breaker
	successThreshold uint32 // consecutive half-open successes that close it
	timeout          time.Duration

	successes int // consecutive successes while half-open
	failures  int // consecutive failures while closed
	openedAt  time.Time
	state     State
	mu        sync.Mutex
}

// New creates a breaker that opens after failureThreshold consecutive
// failures, stays open for timeout, and closes again after successThreshold
// consecutive successes in the half-open state.
func New(failureThreshold, successThreshold uint32, timeout time.Duration) CircuitBreaker {
	return &breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		state:            Closed,
	}
}

func (b *breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs req under the breaker's admission rules. The request itself
// runs outside the lock so slow downstreams do not serialize callers.
func (b *breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	b.mu.Lock()
	if b.state == Open && time.Since(b.openedAt) > b.timeout {
		b.state = HalfOpen
		b.successes = 0
	}
	state := b.state
	b.mu.Unlock()

	if state == Open {
		return nil, ErrCircuitOpen
	}

	res, err := req()
	if err != nil {
		b.onFailure()
		return nil, err
	}
	b.onSuccess()
	return res, nil
}

func (b *breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successes++
		if uint32(b.successes) >= b.successThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case Closed:
		b.failures = 0
	}
}

func (b *breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failures++
		if uint32(b.failures) >= b.failureThreshold {
			b.trip()
		}
	}
}

// trip opens the breaker. Caller holds the lock.
func (b *breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.failures = 0
	b.successes = 0
}
