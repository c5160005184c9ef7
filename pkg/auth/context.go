package auth

import (
	"context"
	"net/http"
)

// Identity is what the gate hands to downstream handlers: the raw principal
// plus a normalized claims view, so handlers never branch on auth mode.
type Identity struct {
	Claims    Claims
	Principal Principal
}

// identityKey is the context key type for the authenticated identity
type identityKey struct{}

// WithIdentity attaches the authenticated identity to a context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity, or nil
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// IdentityFromRequest retrieves the authenticated identity from a request
func IdentityFromRequest(r *http.Request) *Identity {
	return IdentityFromContext(r.Context())
}
