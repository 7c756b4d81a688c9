// Package auth implements the request authentication core: credential
// resolution, client and session authenticators, and the dispatcher that
// selects exactly one authentication path per request.
package auth

import (
	"context"

	"github.com/corvidae/gatehouse/pkg/directory"
)

// Identity is the authenticated principal bound to a request. Exactly one
// identity is made available to the rest of the pipeline per request.
type Identity struct {
	// Subject is the stable identifier of the principal: the client_id for
	// clients, the user id for end users.
	Subject string

	// Username carries the credential-level name used during authentication
	// (Basic username, client_id, directory username).
	Username string

	// ClientID is set when the request authenticated as an OAuth2 client.
	ClientID string

	// UserID is set when the request authenticated as an end user.
	UserID string

	// DN is the directory distinguished name, set when the identity was
	// derived via an authentication filter.
	DN string

	// Method is the client authentication method that produced this identity.
	Method directory.AuthMethod

	// Authenticated reports whether credentials were actually verified, as
	// opposed to an identity that is merely bound for bookkeeping.
	Authenticated bool
}

// IdentityContextKey is the key used to store Identity in the request context.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even if they have the same name
// in different packages.
type IdentityContextKey struct{}

// WithIdentity stores an Identity in the context.
// If identity is nil, the original context is returned unchanged.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, IdentityContextKey{}, identity)
}

// IdentityFromContext retrieves an Identity from the context.
// Returns the identity and true if present, nil and false otherwise.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey{}).(*Identity)
	return identity, ok
}

// Binder is the request-scoped identity holder threaded explicitly through
// the authenticators. One Binder exists per request and is discarded with it;
// nothing here is shared across requests.
type Binder struct {
	current *Identity
}

// NewBinder creates an empty binder for one request.
func NewBinder() *Binder {
	return &Binder{}
}

// Current returns the currently bound identity, or nil.
func (b *Binder) Current() *Identity {
	return b.current
}

// BindClient binds a client identity.
func (b *Binder) BindClient(c *directory.Client, authenticated bool) {
	b.current = &Identity{
		Subject:       c.ID,
		Username:      c.ID,
		ClientID:      c.ID,
		DN:            c.DN,
		Method:        c.Method,
		Authenticated: authenticated,
	}
}

// BindUser binds a verified end-user identity.
func (b *Binder) BindUser(u *directory.User) {
	b.current = &Identity{
		Subject:       u.ID,
		Username:      u.Username,
		UserID:        u.ID,
		Authenticated: true,
	}
}

// Logout discards the currently bound identity. Called before rebinding when
// a later credential supersedes an earlier one.
func (b *Binder) Logout() {
	b.current = nil
}
