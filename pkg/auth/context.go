package auth

import "context"

type identityKey struct{}

// SetIdentity attaches the authenticated identity to the context. The
// middleware calls this after a successful chain run.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller's identity, or nil when the
// request was never authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
