package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware sets a deadline on every request context. Forwarded
// backend calls inherit it, so a hung upstream cannot hold a request past it.
// A non-positive timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
