package context

import (
	"context"

	"github.com/mkrupp/localauth/internal/domain"
)

type contextKey string

const contextKeyPrincipal = contextKey("principal")

// PrincipalFromContext extracts the authenticated user from the context.
// Returns the user and true if present, or the zero value and false if not present.
func PrincipalFromContext(ctx context.Context) (domain.UserInfo, bool) {
	principal, ok := ctx.Value(contextKeyPrincipal).(domain.UserInfo)

	return principal, ok
}

// WithPrincipal creates a new context carrying the authenticated user.
func WithPrincipal(ctx context.Context, principal domain.UserInfo) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}
