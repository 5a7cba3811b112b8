package picstream

import (
	"context"
	"fmt"
)

// Claims is the validated identity extracted once at the request boundary.
// Operations that need ownership information receive it explicitly; it is
// never re-derived downstream.
type Claims struct {
	Subject  string
	Username string
	Email    string
}

// NewClaims builds a Claims value, requiring at least a username.
func NewClaims(subject, username, email string) (Claims, error) {
	if username == "" {
		return Claims{}, fmt.Errorf("%w: username claim is required", ErrUnauthorized)
	}
	return Claims{Subject: subject, Username: username, Email: email}, nil
}

type claimsContextKey struct{}

// WithClaims returns a context carrying the caller's claims.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts the claims placed by the request boundary.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(Claims)
	return claims, ok
}
