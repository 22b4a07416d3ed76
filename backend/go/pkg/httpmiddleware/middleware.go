// Package httpmiddleware provides handler wrappers for the traffic-shaping
// concerns of the HTTP server: rate limiting and circuit breaking.
package httpmiddleware

import (
	"errors"
	"fmt"
	"net/http"

	"accord/backend/go/pkg/circuitbreaker"
	"accord/backend/go/pkg/ratelimiter"
)

// RateLimit rejects requests with 429 once the limiter stops admitting them.
func RateLimit(limiter ratelimiter.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter captures the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// CircuitBreak runs the wrapped handler through the breaker, counting 5xx
// responses as failures. While the circuit is open, requests are answered
// with 503 without reaching the handler.
func CircuitBreak(breaker circuitbreaker.CircuitBreaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			_, err := breaker.Execute(func() (interface{}, error) {
				next.ServeHTTP(sw, r)
				if sw.status >= http.StatusInternalServerError {
					return nil, fmt.Errorf("server error: status code %d", sw.status)
				}
				return nil, nil
			})
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				http.Error(w, "Service Unavailable: Circuit Breaker is open", http.StatusServiceUnavailable)
			}
			// Any other failure was already written to the response by the
			// handler itself.
		})
	}
}
