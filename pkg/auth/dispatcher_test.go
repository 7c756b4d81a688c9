package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidae/gatehouse/pkg/directory"
	"github.com/corvidae/gatehouse/pkg/grants"
	"github.com/corvidae/gatehouse/pkg/session"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	clients    *directory.MemoryClientDirectory
	users      *directory.MemoryUserDirectory
	sessions   *session.MemoryStore
	grants     *grants.MemoryStore
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	clients := directory.NewMemoryClientDirectory()
	users := directory.NewMemoryUserDirectory()
	sessions := session.NewMemoryStore()
	t.Cleanup(func() { _ = sessions.Close() })
	grantStore := grants.NewMemoryStore()

	verifier, err := NewAssertionVerifier(context.Background(), clients)
	require.NoError(t, err)

	clientAuth := NewClientAuthenticator(clients, grantStore, nil, verifier)
	sessionAuth := NewSessionAuthenticator(sessions, users, clients)

	return &dispatcherFixture{
		dispatcher: NewDispatcher(clientAuth, sessionAuth, "gatehouse"),
		clients:    clients,
		users:      users,
		sessions:   sessions,
		grants:     grantStore,
	}
}

func postForm(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestDispatcher_AccessTokenShortcut(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)
	fx.clients.Register(&directory.Client{ID: "cli-1", Secret: "s3cret", Method: directory.MethodClientSecretBasic})
	fx.grants.Put(&grants.Grant{
		AccessToken: "tok-live",
		ClientID:    "cli-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	r := postForm("/token", url.Values{})
	r.Header.Set("Authorization", "AccessToken tok-live")

	outcome := fx.dispatcher.Authenticate(r, EndpointToken)
	require.True(t, outcome.Authenticated)
	assert.Equal(t, "cli-1", outcome.Identity.ClientID)
}

func TestDispatcher_AccessTokenFailureFallsThrough(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)
	fx.clients.Register(&directory.Client{ID: "cli-1", Secret: "s3cret", Method: directory.MethodClientSecretPost})

	// The unknown access token falls through to POST-body authentication,
	// which succeeds with explicit credentials.
	r := postForm("/token", url.Values{
		ParamClientID:     {"cli-1"},
		ParamClientSecret: {"s3cret"},
	})
	r.Header.Set("Authorization", "AccessToken tok-unknown")

	outcome := fx.dispatcher.Authenticate(r, EndpointToken)
	require.True(t, outcome.Authenticated)
	assert.Equal(t, "cli-1", outcome.Identity.ClientID)
	assert.Equal(t, directory.MethodClientSecretPost, outcome.Identity.Method)
}

func TestDispatcher_BasicMethodMismatchIsInvalidClient(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)
	// joe:secret matches the stored secret, but the client is registered for
	// client_secret_post; Basic at /token must yield invalid_client.
	fx.clients.Register(&directory.Client{ID: "joe", Secret: "secret", Method: directory.MethodClientSecretPost})

	r := postForm("/token", url.Values{})
	r.Header.Set("Authorization", "Basic am9lOnNlY3JldA==")

	outcome := fx.dispatcher.Authenticate(r, EndpointToken)
	assert.False(t, outcome.Authenticated)
	assert.False(t, outcome.PassThrough)
}

func TestDispatcher_AssertionPrecedesBasic(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)
	fx.clients.Register(&directory.Client{ID: "cli-jwt", Secret: "assertion-secret", Method: directory.MethodClientSecretJWT})
	fx.clients.Register(&directory.Client{ID: "cli-basic", Secret: "s3cret", Method: directory.MethodClientSecretBasic})

	// Both an assertion and a valid Basic header are present. The assertion
	// is evaluated and its failure is final: no Basic fallback.
	r := postForm("/token", url.Values{
		ParamClientAssertion:     {"garbage"},
		ParamClientAssertionType: {AssertionTypeJWTBearer},
	})
	r.SetBasicAuth("cli-basic", "s3cret")

	outcome := fx.dispatcher.Authenticate(r, EndpointToken)
	assert.False(t, outcome.Authenticated)
	assert.False(t, outcome.PassThrough)
}

func TestDispatcher_AssertionSuccess(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)
	fx.clients.Register(&directory.Client{ID: "cli-jwt", Secret: "assertion-secret", Method: directory.MethodClientSecretJWT})

	r := postForm("/token", url.Values{
		ParamClientAssertion:     {signedAssertion(t, "assertion-secret", "cli-jwt", "cli-jwt", time.Minute)},
		ParamClientAssertionType: {AssertionTypeJWTBearer},
	})

	outcome := fx.dispatcher.Authenticate(r, EndpointToken)
	require.True(t, outcome.Authenticated)
	assert.Equal(t, "cli-jwt", outcome.Identity.ClientID)
}

func TestDispatcher_BearerPassesThrough(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	r.Header.Set("Authorization", "Bearer some-token")

	outcome := fx.dispatcher.Authenticate(r, EndpointBearerOnly)
	assert.False(t, outcome.Authenticated)
	assert.True(t, outcome.PassThrough)
}

func TestDispatcher_SessionPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fx := newDispatcherFixture(t)
	fx.users.Register(&directory.User{ID: "u-1", Username: "joe"}, "secret")

	sess := session.New(time.Minute)
	sess.State = session.StateAuthenticated
	sess.UserID = "u-1"
	require.NoError(t, fx.sessions.Save(ctx, sess))

	r := httptest.NewRequest(http.MethodGet, "/authorize?session_id="+sess.ID, nil)
	outcome := fx.dispatcher.Authenticate(r, EndpointAuthorize)
	require.True(t, outcome.Authenticated)
	assert.Equal(t, "joe", outcome.Identity.Username)
}

func TestDispatcher_PromptLoginSkipsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fx := newDispatcherFixture(t)
	fx.users.Register(&directory.User{ID: "u-1", Username: "joe"}, "secret")

	sess := session.New(time.Minute)
	sess.State = session.StateAuthenticated
	sess.UserID = "u-1"
	require.NoError(t, fx.sessions.Save(ctx, sess))

	r := httptest.NewRequest(http.MethodGet, "/authorize?session_id="+sess.ID+"&prompt=login", nil)
	outcome := fx.dispatcher.Authenticate(r, EndpointAuthorize)
	assert.False(t, outcome.Authenticated)
	assert.True(t, outcome.PassThrough, "prompt=login forces re-authentication via the interactive flow")
}

func TestDispatcher_SessionFailureIsPassThrough(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/authorize?session_id=unknown", nil)
	outcome := fx.dispatcher.Authenticate(r, EndpointAuthorize)
	assert.False(t, outcome.Authenticated)
	assert.True(t, outcome.PassThrough, "session failure lets the interactive flow take over")
}

func TestDispatcher_MiddlewareWritesInvalidClient(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)

	handler := fx.dispatcher.Middleware(EndpointToken)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run on authentication failure")
	}))

	r := postForm("/token", url.Values{})
	r.Header.Set("Authorization", "Basic am9lOnNlY3JldA==")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="gatehouse"`, w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "application/json;charset=UTF-8", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_client", body["error"])
}

func TestDispatcher_MiddlewareBindsIdentityOnce(t *testing.T) {
	t.Parallel()

	fx := newDispatcherFixture(t)
	fx.clients.Register(&directory.Client{ID: "cli-1", Secret: "s3cret", Method: directory.MethodClientSecretBasic})

	var seen *Identity
	handler := fx.dispatcher.Middleware(EndpointToken)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
	}))

	r := postForm("/token", url.Values{})
	r.SetBasicAuth("cli-1", "s3cret")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, seen)
	assert.Equal(t, "cli-1", seen.ClientID)
}
