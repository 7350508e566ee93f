package identity

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a new context with the principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext retrieves the principal from the context, or nil if the request
// was not authenticated.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// FromRequest retrieves the principal from an HTTP request's context.
func FromRequest(r *http.Request) *Principal {
	return FromContext(r.Context())
}
