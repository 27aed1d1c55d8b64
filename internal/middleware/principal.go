package middleware

import (
	"context"

	"github.com/onnwee/timeguard/internal/access"
)

type principalKey struct{}

// SetPrincipal stores the authenticated principal in the context.
// Authentication middleware calls this after resolving the caller.
func SetPrincipal(ctx context.Context, p access.Principal) context.Context {
	if s := stateFrom(ctx); s != nil {
		s.principalID = p.ID
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns the principal stored in ctx and whether one was present.
func GetPrincipal(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(access.Principal)
	return p, ok
}
