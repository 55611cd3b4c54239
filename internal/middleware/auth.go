package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agristack/agristack-auth/internal/auth"
	"github.com/agristack/agristack-auth/internal/user/entity"
)

// Resolver recovers the identity behind a bearer token. *auth.Service is
// the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*entity.User, error)
}

type contextKey struct{}

// UserFrom returns the identity resolved by RequireAuth, if any.
func UserFrom(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(contextKey{}).(*entity.User)
	return u, ok
}

// RequireAuth gates downstream operations (profile, farms, cart, wishlist,
// migrations) behind a valid session. The resolved identity is placed in
// the request context.
func RequireAuth(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := resolver.Resolve(r.Context(), auth.BearerToken(r))
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				msg := "Invalid token"
				if errors.Is(err, auth.ErrMissingToken) {
					msg = "Missing token"
				}
				_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, u)))
		})
	}
}
