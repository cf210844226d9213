package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-file-vault/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Authenticator resolves a bearer token to the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

// Auth returns middleware that validates the Bearer token and injects the identity into context.
// Requests without a valid token never reach next.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "authentication_error", "missing or invalid authorization header")
				return
			}
			identity, err := a.Authenticate(r.Context(), token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "authentication_error", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *identity)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the authenticated caller from the request context.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}
