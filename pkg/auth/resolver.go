package auth

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// Endpoint classifies the protected endpoint a request targets. Dispatch
// rules differ between machine endpoints (token, revocation) and the browser
// front channel.
type Endpoint string

const (
	// EndpointToken is the OAuth2 token endpoint.
	EndpointToken Endpoint = "token"

	// EndpointUMAToken is the UMA token endpoint; it dispatches like the
	// token endpoint.
	EndpointUMAToken Endpoint = "uma_token"

	// EndpointRevoke is the token revocation endpoint.
	EndpointRevoke Endpoint = "revoke"

	// EndpointAuthorize is the front-channel authorization endpoint.
	EndpointAuthorize Endpoint = "authorize"

	// EndpointBearerOnly marks endpoints whose own handler validates a
	// bearer token downstream (e.g. userinfo, introspection).
	EndpointBearerOnly Endpoint = "bearer_only"
)

// TokenEndpoint reports whether the endpoint is a token or UMA-token endpoint.
func (e Endpoint) TokenEndpoint() bool {
	return e == EndpointToken || e == EndpointUMAToken
}

// RequiresSecretBasic reports whether Basic authentication at this endpoint
// demands the client's registered method be client_secret_basic.
func (e Endpoint) RequiresSecretBasic() bool {
	return e.TokenEndpoint() || e == EndpointRevoke
}

// Request parameters driving dispatch.
const (
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamClientAssertion     = "client_assertion"
	ParamClientAssertionType = "client_assertion_type"
	ParamSessionID           = "session_id"
	ParamPrompt              = "prompt"
	ParamACRValues           = "acr_values"
)

// SessionCookieName is the cookie carrying the front-channel session id.
const SessionCookieName = "gatehouse_session"

// BasicCredentials is a decoded Basic authorization header.
type BasicCredentials struct {
	Username string
	Password string
}

// AssertionCredentials is a raw client JWT assertion.
type AssertionCredentials struct {
	Assertion string
	Type      string
}

// Prompt is the parsed prompt parameter, a space-separated set.
type Prompt struct {
	// Login forces re-authentication even with a live session.
	Login bool

	// None blocks any interactive fallback.
	None bool
}

// ParsePrompt parses the prompt request parameter.
func ParsePrompt(raw string) Prompt {
	var p Prompt
	for _, v := range strings.Fields(raw) {
		switch v {
		case "login":
			p.Login = true
		case "none":
			p.None = true
		}
	}
	return p
}

// accessTokenHeader extracts the token from "Authorization: AccessToken <t>".
func accessTokenHeader(r *http.Request) (string, bool) {
	return authorizationScheme(r, "AccessToken")
}

// bearerHeader extracts the token from "Authorization: Bearer <t>".
func bearerHeader(r *http.Request) (string, bool) {
	return authorizationScheme(r, "Bearer")
}

func authorizationScheme(r *http.Request, scheme string) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	prefix := scheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	value := strings.TrimSpace(header[len(prefix):])
	return value, value != ""
}

// basicCredentials decodes an "Authorization: Basic <base64>" header. The
// token is split on the first colon and both halves are URL-decoded, per
// RFC 6749 §2.3.1.
func basicCredentials(r *http.Request) (BasicCredentials, bool) {
	raw, ok := authorizationScheme(r, "Basic")
	if !ok {
		return BasicCredentials{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return BasicCredentials{}, false
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return BasicCredentials{}, false
	}
	u, err := url.QueryUnescape(username)
	if err != nil {
		return BasicCredentials{}, false
	}
	p, err := url.QueryUnescape(password)
	if err != nil {
		return BasicCredentials{}, false
	}
	return BasicCredentials{Username: u, Password: p}, true
}

// assertionCredentials extracts a client JWT assertion from the request
// parameters. Both client_assertion and client_assertion_type must be present.
func assertionCredentials(params url.Values) (AssertionCredentials, bool) {
	assertion := params.Get(ParamClientAssertion)
	typ := params.Get(ParamClientAssertionType)
	if assertion == "" || typ == "" {
		return AssertionCredentials{}, false
	}
	return AssertionCredentials{Assertion: assertion, Type: typ}, true
}

// sessionID extracts the session identifier from the request parameter or,
// failing that, the session cookie.
func sessionID(r *http.Request, params url.Values) string {
	if id := params.Get(ParamSessionID); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// requestParams merges query and form parameters. ParseForm is idempotent,
// so calling it here is safe even if the handler already did.
func requestParams(r *http.Request) url.Values {
	_ = r.ParseForm()
	return r.Form
}
