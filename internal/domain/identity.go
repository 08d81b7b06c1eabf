package domain

import "context"

type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// CurrentUser returns the identity attached to ctx by the auth middleware.
func CurrentUser(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, false
	}
	return identity, true
}
