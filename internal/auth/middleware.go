package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/middleware"
)

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// PrincipalResolver maps a verified identity to the principal stored for it,
// provisioning the profile on first sight.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, id Identity) (access.Principal, error)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate requires a valid bearer token on every request and stores the
// resolved principal in the request context.
func Authenticate(validator TokenValidator, resolver PrincipalResolver, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, r, fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthenticated))
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				writeError(w, r, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err))
				return
			}

			principal, err := resolver.ResolvePrincipal(r.Context(), claims.Identity())
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := middleware.SetPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
