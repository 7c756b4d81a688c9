package auth

import (
	"context"
	"net/url"

	"github.com/corvidae/gatehouse/pkg/directory"
	"github.com/corvidae/gatehouse/pkg/grants"
	"github.com/corvidae/gatehouse/pkg/logger"
)

// ClientAuthenticator verifies client credentials in one of the supported
// modes. Failure is always reported as a plain false; errors from the
// directory or verifier are logged and converted here, never propagated to
// the dispatcher.
type ClientAuthenticator struct {
	clients    directory.ClientDirectory
	grantStore grants.Store
	filters    *FilterChain
	assertions *AssertionVerifier
}

// NewClientAuthenticator wires a client authenticator. filters and assertions
// may be nil when the deployment does not use them.
func NewClientAuthenticator(
	clients directory.ClientDirectory,
	grantStore grants.Store,
	filters *FilterChain,
	assertions *AssertionVerifier,
) *ClientAuthenticator {
	return &ClientAuthenticator{
		clients:    clients,
		grantStore: grantStore,
		filters:    filters,
		assertions: assertions,
	}
}

// AuthenticateBasic handles Basic client authentication. At token and
// revocation endpoints the looked-up client must be registered for
// client_secret_basic or the attempt fails regardless of the secret.
func (a *ClientAuthenticator) AuthenticateBasic(
	ctx context.Context,
	binder *Binder,
	creds BasicCredentials,
	endpoint Endpoint,
) bool {
	// Idempotence: a matching identity already authenticated on this request
	// is not re-verified against the directory.
	if cur := binder.Current(); cur != nil && cur.Authenticated && cur.Username == creds.Username {
		return true
	}

	client, err := a.clients.GetByID(ctx, creds.Username)
	if endpoint.RequiresSecretBasic() {
		if err != nil || client.Method != directory.MethodClientSecretBasic {
			logger.Debugw("basic auth rejected: method mismatch",
				"client_id", creds.Username,
				"endpoint", endpoint,
			)
			return false
		}
	} else if err != nil {
		return false
	}

	ok, err := a.clients.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		logger.Errorw("client directory authenticate failed", "error", err, "client_id", creds.Username)
		return false
	}
	if !ok {
		return false
	}
	binder.BindClient(client, true)
	return true
}

// AuthenticatePost handles POST-body client authentication. The order is:
// explicit client_id/client_secret, then configured authentication filters,
// then the public-client (method none) path on the token endpoint.
//
// When client_id/client_secret are present but the client record is missing
// or registered for a different method, the attempt falls through to the
// filters path instead of failing outright. That matches the historical
// front-channel behavior; see DESIGN.md for the permissiveness note.
func (a *ClientAuthenticator) AuthenticatePost(
	ctx context.Context,
	binder *Binder,
	params url.Values,
	endpoint Endpoint,
) bool {
	clientID := params.Get(ParamClientID)
	clientSecret := params.Get(ParamClientSecret)

	if clientID != "" && clientSecret != "" {
		client, err := a.clients.GetByID(ctx, clientID)
		if err == nil && client.Method == directory.MethodClientSecretPost {
			// A credential presented explicitly supersedes whatever identity
			// an earlier stage may have bound.
			binder.Logout()

			ok, err := a.clients.Authenticate(ctx, clientID, clientSecret)
			if err != nil {
				logger.Errorw("client directory authenticate failed", "error", err, "client_id", clientID)
				return false
			}
			if !ok {
				return false
			}
			binder.BindClient(client, true)
			return true
		}
	}

	if dn, ok := a.filters.Derive(params); ok {
		client, err := a.clients.GetByDN(ctx, dn)
		if err != nil {
			logger.Warnw("filter-derived client DN not found", "dn", dn, "error", err)
			return false
		}
		// Trust is established by the filter match itself; no password is
		// verified and the assertion counts as already checked.
		binder.BindClient(client, true)
		return true
	}

	if endpoint.TokenEndpoint() && clientID != "" {
		client, err := a.clients.GetByID(ctx, clientID)
		if err == nil && client.Public() {
			binder.BindClient(client, true)
			return true
		}
	}

	return false
}

// AuthenticateAssertion handles JWT-assertion client authentication.
// On success the asserted client is bound exactly as in POST mode.
func (a *ClientAuthenticator) AuthenticateAssertion(
	ctx context.Context,
	binder *Binder,
	creds AssertionCredentials,
) bool {
	if a.assertions == nil {
		logger.Warn("client assertion presented but no verifier configured")
		return false
	}
	client, err := a.assertions.Verify(ctx, creds)
	if err != nil {
		logger.Debugw("client assertion rejected", "error", err)
		return false
	}
	binder.Logout()
	binder.BindClient(client, true)
	return true
}

// AuthenticateAccessToken handles the access-token-as-credential mode: the
// token must map to an active, unexpired grant, whose client is bound without
// re-authenticating.
func (a *ClientAuthenticator) AuthenticateAccessToken(
	ctx context.Context,
	binder *Binder,
	token string,
) bool {
	if a.grantStore == nil {
		return false
	}
	grant, err := a.grantStore.LookupByAccessToken(ctx, token)
	if err != nil {
		return false
	}
	if !grant.Active() {
		logger.Debugw("access-token credential rejected: grant inactive", "client_id", grant.ClientID)
		return false
	}
	client, err := a.clients.GetByID(ctx, grant.ClientID)
	if err != nil {
		logger.Warnw("grant references unknown client", "client_id", grant.ClientID, "error", err)
		return false
	}
	binder.BindClient(client, true)
	return true
}
