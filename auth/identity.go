package auth

import "context"

// Identity is the resolved {clientId, tier, credentialValue} triple the
// authentication stage attaches to the request context. Generalizes the
// gateway's original loose APIKeyContextKey/UserIDContextKey string-keyed
// values into one typed value.
type Identity struct {
	ClientID        string
	Tier            string
	CredentialValue string
	Authenticated   bool
}

type identityContextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext extracts the Identity attached by the authentication stage.
// ok is false if no stage ran (should not happen past the pipeline).
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
