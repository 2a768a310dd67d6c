package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chamberlink/chamberlink/internal/auth"
)

type contextKey string

const identityContextKey contextKey = "identity"

// RequireAuth resolves the bearer token and stores the caller's identity on
// the request context. Requests without a valid token never reach the
// messaging core.
func RequireAuth(svc *auth.Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				jsonError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			ident, err := svc.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					jsonError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				jsonError(w, http.StatusServiceUnavailable, "credential lookup failed")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, *ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the resolved caller identity, if any.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(auth.Identity)
	return ident, ok
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
