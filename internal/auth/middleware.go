package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

type contextKey struct{}

var identityKey contextKey

// IdentityFromContext returns the identity attached by Middleware.
func IdentityFromContext(ctx context.Context) (gateway.Identity, bool) {
	id, ok := ctx.Value(identityKey).(gateway.Identity)
	return id, ok
}

// ContextWithIdentity attaches an identity to ctx. Exposed for tests and
// for the local-mode noop middleware.
func ContextWithIdentity(ctx context.Context, id gateway.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// CredentialFromRequest extracts the bearer credential from either the
// Authorization header or the connect-time `token` query parameter.
func CredentialFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}
	return r.URL.Query().Get("token")
}

// Middleware validates the request's bearer credential and attaches the
// resulting identity to the request context. Used by the collaborator API;
// the websocket handshake drives the validator directly so it can order
// rate limiting before the store lookup.
func Middleware(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := v.Validate(r.Context(), CredentialFromRequest(r))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// NoopMiddleware attaches a fixed identity without validation. Local run
// mode and tests only.
func NoopMiddleware(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ContextWithIdentity(r.Context(), gateway.Identity{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
