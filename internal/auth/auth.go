// Package auth resolves the caller identity behind every mutating call.
package auth

import (
	"context"
	"net/http"

	"github.com/pendergraft/matchforge/internal/storage"
	"github.com/pendergraft/matchforge/internal/validation"
)

// Identity is the authenticated caller of an operation.
type Identity struct {
	KeyID   string
	Address string
	Owner   bool
}

// Context key type for avoiding collisions
type contextKey string

const identityContextKey contextKey = "identity"

// GetIdentity retrieves the caller identity from context, nil when the
// request was not authenticated.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityContextKey).(*Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns a context carrying the given identity. Used by tests
// and the auth middleware.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// ErrorWriter writes a structured error response.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// extractKey pulls the identity key from X-API-Key or a bearer token.
func extractKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	return ""
}

// Middleware returns an HTTP middleware that validates identity keys and
// stores the resolved identity in the request context.
func Middleware(store storage.APIKeyStore, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required")
				return
			}

			record, err := store.ValidateAPIKey(r.Context(), key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}

			identity := &Identity{
				KeyID:   record.ID,
				Address: validation.NormalizeAddress(record.Address),
				Owner:   record.Owner,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireOwner returns an HTTP middleware that rejects callers whose key is
// not flagged as the protocol owner. Must run after Middleware.
func RequireOwner(writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil || !identity.Owner {
				writeError(w, http.StatusForbidden, "UNAUTHORIZED", "Owner key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
