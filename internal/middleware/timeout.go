package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout applies when the configured timeout is zero or
// negative.
const DefaultRequestTimeout = 30 * time.Second

// Timeout bounds each request: the context is cancelled at the deadline and
// http.TimeoutHandler writes a 503 if the handler hasn't responded.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler := http.TimeoutHandler(next, timeout, "Request Timeout")
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
