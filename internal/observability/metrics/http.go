package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// normalizePath collapses dynamic path segments (addresses, match ids) to
// placeholders so metric cardinality stays bounded. For example:
//
//	/api/v1/registry/users/0x1234...        -> /api/v1/registry/users/{address}
//	/api/v1/registry/matches/42/verify      -> /api/v1/registry/matches/{id}/verify
func normalizePath(path string) string {
	if path == "/health" || path == "/healthz" || path == "/readyz" || path == "/metrics" {
		return path
	}

	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "0x") {
			parts[i] = "{address}"
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return "/api/v1/" + strings.Join(parts, "/")
}
