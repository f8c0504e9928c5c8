// Package security provides request filtering and body size middleware.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Config holds the configuration for security middleware.
type Config struct {
	// FilterEnabled enables the request filter.
	FilterEnabled bool
	// MaxBodySizeMB is the maximum request body size in megabytes.
	MaxBodySizeMB int
}

// MaxBodySize limits request body size to maxSizeMB megabytes. Oversized
// reads fail inside the handler's body decode.
func MaxBodySize(maxSizeMB int) func(http.Handler) http.Handler {
	maxBytes := int64(maxSizeMB) * 1024 * 1024

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// probePrefixes match scanner traffic this API never serves.
var probePrefixes = []string{
	"/.php",
	"/wp-admin",
	"/wp-includes",
	"/wp-content",
	"/wp-login",
	"/.git/",
	"/.env",
	"/cgi-bin/",
	"/phpmyadmin",
	"/phpinfo",
	"/shell",
	"/.htaccess",
	"/.htpasswd",
	"/server-status",
	"/xmlrpc.php",
}

// hostilePatterns match traversal and injection attempts anywhere in the path.
var hostilePatterns = []string{
	"../",
	"..%2f",
	"..%5c",
	"%2e%2e/",
	"%00",
}

// Filter blocks requests matching known scanner probes and path traversal
// attempts. The response never reveals which rule matched.
func Filter(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			path := strings.ToLower(r.URL.Path)
			if hostile(path) {
				writeBlocked(w)
				return
			}

			// Re-check after decoding in case of encoding tricks.
			raw := r.URL.RawPath
			if raw == "" {
				raw = r.URL.Path
			}
			if decoded, err := url.PathUnescape(raw); err == nil && decoded != path {
				if hostile(strings.ToLower(decoded)) {
					writeBlocked(w)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hostile(path string) bool {
	for _, prefix := range probePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, pattern := range hostilePatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func writeBlocked(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "BAD_REQUEST",
			"message": "Invalid request",
		},
	})
}
