package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// RequestIDMiddleware extracts or generates a request ID, stores it in the
// request context, and echoes it back in the X-Request-ID response header
// for correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext retrieves the request ID from context, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// MetricsMiddleware records request duration per route. Outermost in the
// chain so the full handling time is captured. Path parameters are folded
// into one label per route family to keep cardinality bounded.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			m.RequestDuration.WithLabelValues(routeLabel(r.URL.Path)).Observe(time.Since(start).Seconds())
		})
	}
}

func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/tools/"):
		return "/tools"
	case strings.HasPrefix(path, "/approve/"):
		return "/approve"
	case strings.HasPrefix(path, "/admin/"):
		return "/admin"
	case path == "/health" || path == "/metrics":
		return path
	default:
		return "other"
	}
}
