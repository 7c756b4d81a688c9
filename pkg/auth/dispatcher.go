package auth

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/corvidae/gatehouse/pkg/logger"
)

// Outcome is the dispatcher's decision for one request.
type Outcome struct {
	// Authenticated is true when a principal was verified and bound.
	Authenticated bool

	// PassThrough is true when the request proceeds unauthenticated and the
	// downstream resource decides what happens (e.g. starts the interactive
	// login workflow).
	PassThrough bool

	// Identity is the bound principal when Authenticated is true.
	Identity *Identity
}

// Dispatcher is the top-level request authentication entry point. It
// classifies the incoming request and invokes exactly one authentication
// path; the ordering below is the sole tie-break between modes.
type Dispatcher struct {
	clientAuth  *ClientAuthenticator
	sessionAuth *SessionAuthenticator
	realm       string
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(clientAuth *ClientAuthenticator, sessionAuth *SessionAuthenticator, realm string) *Dispatcher {
	return &Dispatcher{
		clientAuth:  clientAuth,
		sessionAuth: sessionAuth,
		realm:       realm,
	}
}

// Authenticate selects and runs exactly one authentication path for the
// request. Any panic while resolving is treated as authentication failure:
// this layer fails closed, never open.
func (d *Dispatcher) Authenticate(r *http.Request, endpoint Endpoint) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("panic during request authentication", "panic", rec, "endpoint", endpoint)
			outcome = Outcome{}
		}
	}()

	ctx := r.Context()
	params := requestParams(r)
	binder := NewBinder()

	// 1. Pre-authenticated access token shortcut on token endpoints. On
	// failure or absence the request falls through to the other modes.
	if endpoint.TokenEndpoint() {
		if token, ok := accessTokenHeader(r); ok {
			if d.clientAuth.AuthenticateAccessToken(ctx, binder, token) {
				return authenticated(binder)
			}
		}
	}

	// 2. JWT assertion.
	if creds, ok := assertionCredentials(params); ok {
		if d.clientAuth.AuthenticateAssertion(ctx, binder, creds) {
			return authenticated(binder)
		}
		return Outcome{}
	}

	// 3. Basic.
	if creds, ok := basicCredentials(r); ok {
		if d.clientAuth.AuthenticateBasic(ctx, binder, creds, endpoint) {
			return authenticated(binder)
		}
		return Outcome{}
	}

	// 4. POST body on token endpoints: explicit params, then filters, then
	// public clients.
	if endpoint.TokenEndpoint() {
		if d.clientAuth.AuthenticatePost(ctx, binder, params, endpoint) {
			return authenticated(binder)
		}
		return Outcome{}
	}

	// 5. Bearer-only endpoints pass through; the token is validated
	// downstream by the resource itself.
	if endpoint == EndpointBearerOnly {
		if _, ok := bearerHeader(r); ok {
			return Outcome{PassThrough: true}
		}
	}

	// 6. Existing session, unless the caller forces a fresh login. A failed
	// session check is not a hard failure: the interactive flow takes over.
	if id := sessionID(r, params); id != "" && !ParsePrompt(params.Get(ParamPrompt)).Login {
		if d.sessionAuth.Authenticate(ctx, binder, id) {
			return authenticated(binder)
		}
	}

	// 7. Pass through unauthenticated.
	return Outcome{PassThrough: true}
}

func authenticated(binder *Binder) Outcome {
	return Outcome{Authenticated: true, Identity: binder.Current()}
}

// Middleware adapts the dispatcher for a chi route group serving the given
// endpoint kind. A successful resolution makes the identity available on the
// request context exactly once; a failure writes the invalid_client response.
func (d *Dispatcher) Middleware(endpoint Endpoint) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := d.Authenticate(r, endpoint)
			switch {
			case outcome.Authenticated:
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), outcome.Identity)))
			case outcome.PassThrough:
				next.ServeHTTP(w, r)
			default:
				d.WriteInvalidClient(w)
			}
		})
	}
}

// WriteInvalidClient writes the 401 invalid_client response with the
// WWW-Authenticate challenge for this realm.
func (d *Dispatcher) WriteInvalidClient(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", d.realm))
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(http.StatusUnauthorized)

	body := map[string]string{
		"error":             "invalid_client",
		"error_description": "Client authentication failed.",
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to write invalid_client response", "error", err)
	}
}
