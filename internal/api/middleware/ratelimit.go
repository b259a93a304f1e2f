// Package middleware holds the HTTP middleware for the API surface.
package middleware

import (
	"math"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/clarion-chat/clarion/internal/api/handlers"
)

// RateLimit rejects requests beyond rps/burst with a 429 envelope carrying
// the limiter's wait time as the retry hint. A single process-wide token
// bucket: the service fronts one model backend, so per-client fairness is
// left to the ingress.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if !res.OK() {
				writeTooManyRequests(w, 1)
				return
			}
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				writeTooManyRequests(w, retrySeconds(delay.Seconds()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter, retryAfter int) {
	handlers.WriteJSON(w, http.StatusTooManyRequests, handlers.ErrorEnvelope{
		Success:    false,
		Message:    "too many requests",
		RetryAfter: retryAfter,
	})
}

func retrySeconds(seconds float64) int {
	s := int(math.Ceil(seconds))
	if s < 1 {
		s = 1
	}
	return s
}
