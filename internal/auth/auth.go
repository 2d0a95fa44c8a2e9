// Package auth defines the identity boundary. The provider supplies identity
// only; profile and role lookup is a separate datastore read, and every core
// operation receives its actor explicitly rather than reading a global.
package auth

// Identity is the authenticated party as reported by the provider.
type Identity struct {
	UID string
}

// Provider reports the currently authenticated identity.
type Provider interface {
	// CurrentActor returns the signed-in identity, or false when nobody is
	// signed in.
	CurrentActor() (Identity, bool)
}

// StaticProvider is a fixed-identity provider, used by the CLI server where
// the upstream proxy has already authenticated the request, and by tests.
type StaticProvider struct {
	identity Identity
	signedIn bool
}

// NewStaticProvider creates a provider that always reports the given UID.
func NewStaticProvider(uid string) *StaticProvider {
	return &StaticProvider{identity: Identity{UID: uid}, signedIn: uid != ""}
}

// CurrentActor implements Provider.
func (p *StaticProvider) CurrentActor() (Identity, bool) {
	return p.identity, p.signedIn
}
