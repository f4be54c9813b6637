// Package token resolves the identity behind a client-supplied bearer token.
package token

import (
	"context"
	"time"
)

// Identity is the caller a bearer token was issued to.
type Identity struct {
	Subject   string
	Email     string
	Scopes    []string
	ExpiresAt time.Time
	// Raw is the bearer token itself, kept so it can be forwarded to tools.
	Raw string
}

// Resolver turns a bearer token into an Identity. Implementations must verify
// the token; an unverifiable token yields an error wrapping errors.ErrInvalidToken.
type Resolver interface {
	Resolve(ctx context.Context, bearer string) (*Identity, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, bearer string) (*Identity, error)

func (f ResolverFunc) Resolve(ctx context.Context, bearer string) (*Identity, error) {
	return f(ctx, bearer)
}
