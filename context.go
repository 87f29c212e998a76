package portfolioAuth

import (
	"context"

	"github.com/MrEthical07/portfolioAuth/internal"
	"github.com/MrEthical07/portfolioAuth/permission"
)

type fingerprintContextKey struct{}
type authorizationContextKey struct{}

// Fingerprint is the client environment a session is bound to. Each
// component is hashed before it reaches the store.
type Fingerprint struct {
	IP       string
	Platform string
	Browser  string
}

// WithFingerprint attaches the caller's fingerprint to ctx. Authenticate
// records it with the new session; RenewCredentials compares against it when
// fingerprint enforcement is enabled.
func WithFingerprint(ctx context.Context, fp Fingerprint) context.Context {
	return context.WithValue(ctx, fingerprintContextKey{}, fp)
}

// FingerprintFromContext returns the fingerprint attached to ctx, if any.
func FingerprintFromContext(ctx context.Context) (Fingerprint, bool) {
	if ctx == nil {
		return Fingerprint{}, false
	}
	fp, ok := ctx.Value(fingerprintContextKey{}).(Fingerprint)
	return fp, ok
}

type fingerprintHashes struct {
	ip       [32]byte
	platform [32]byte
	browser  [32]byte
}

func (fp Fingerprint) hashes() fingerprintHashes {
	return fingerprintHashes{
		ip:       internal.HashBindingValue(fp.IP),
		platform: internal.HashBindingValue(fp.Platform),
		browser:  internal.HashBindingValue(fp.Browser),
	}
}

// WithAuthorization attaches an authorization context to ctx.
func WithAuthorization(ctx context.Context, auth permission.Context) context.Context {
	return context.WithValue(ctx, authorizationContextKey{}, auth)
}

// AuthorizationFromContext returns the authorization context a Guard
// attached to ctx, or the guest context.
func AuthorizationFromContext(ctx context.Context) permission.Context {
	if ctx == nil {
		return permission.GuestContext()
	}
	auth, ok := ctx.Value(authorizationContextKey{}).(permission.Context)
	if !ok {
		return permission.GuestContext()
	}
	return auth
}
