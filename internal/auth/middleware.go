// Package auth provides bearer-token authentication for the Doaqui API.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/doaqui/doaqui/internal/domain"
)

// IdentityStore resolves a user id to the identity details the lifecycle
// operations need. Implemented by the user service.
type IdentityStore interface {
	// GetIdentity returns the identity for an authenticated user id.
	GetIdentity(ctx context.Context, userID uuid.UUID) (*domain.UserIdentity, error)
}

// contextKey is a private type for context values.
type contextKey struct{}

// identityKey stores the resolved identity in the request context.
var identityKey = contextKey{}

// Config contains configuration for the auth middleware.
type Config struct {
	// SkipPaths are path prefixes that skip authentication.
	SkipPaths []string
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		SkipPaths: []string{"/health", "/metrics", "/users/register", "/users/login"},
	}
}

// Middleware creates an authentication middleware that resolves the
// Authorization header to a UserIdentity. Requests without a valid token
// are rejected with 401 before reaching any handler.
func Middleware(issuer *TokenIssuer, store IdentityStore, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			userID, err := issuer.Verify(token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token verification failed")
				unauthorized(w)
				return
			}

			identity, err := store.GetIdentity(r.Context(), userID)
			if err != nil {
				log.Debug().Err(err).Str("user_id", userID.String()).Msg("identity resolution failed")
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// unauthorized writes the 401 response.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"access denied"}`))
}

// IdentityFromContext returns the resolved identity of the request actor.
// The second return is false for unauthenticated requests.
func IdentityFromContext(ctx context.Context) (*domain.UserIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.UserIdentity)
	return identity, ok
}
