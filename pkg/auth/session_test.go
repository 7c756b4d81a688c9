package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidae/gatehouse/pkg/directory"
	"github.com/corvidae/gatehouse/pkg/session"
)

func newSessionAuthFixture(t *testing.T) (*SessionAuthenticator, *session.MemoryStore, *directory.MemoryUserDirectory) {
	t.Helper()

	store := session.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	users := directory.NewMemoryUserDirectory()
	clients := directory.NewMemoryClientDirectory()
	return NewSessionAuthenticator(store, users, clients), store, users
}

func TestSessionAuthenticator_Success(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, store, users := newSessionAuthFixture(t)
	users.Register(&directory.User{ID: "u-1", Username: "joe"}, "secret")

	sess := session.New(time.Minute)
	sess.State = session.StateAuthenticated
	sess.UserID = "u-1"
	require.NoError(t, store.Save(ctx, sess))

	binder := NewBinder()
	require.True(t, a.Authenticate(ctx, binder, sess.ID))
	assert.Equal(t, "joe", binder.Current().Username)
	assert.True(t, binder.Current().Authenticated)
}

func TestSessionAuthenticator_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, store, users := newSessionAuthFixture(t)
	users.Register(&directory.User{ID: "u-1", Username: "joe"}, "secret")

	unauthenticated := session.New(time.Minute)
	unauthenticated.UserID = "u-1"
	require.NoError(t, store.Save(ctx, unauthenticated))

	stale := session.New(time.Minute)
	stale.State = session.StateAuthenticated
	stale.UserID = "gone"
	require.NoError(t, store.Save(ctx, stale))

	unbound := session.New(time.Minute)
	unbound.State = session.StateAuthenticated
	require.NoError(t, store.Save(ctx, unbound))

	tests := []struct {
		name string
		id   string
	}{
		{"missing session", "no-such-session"},
		{"not authenticated", unauthenticated.ID},
		{"stale user reference", stale.ID},
		{"no bound principal", unbound.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			binder := NewBinder()
			assert.False(t, a.Authenticate(ctx, binder, tt.id))
			assert.Nil(t, binder.Current())
		})
	}
}

func TestSessionAuthenticator_DoesNotMutateSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, store, users := newSessionAuthFixture(t)
	users.Register(&directory.User{ID: "u-1", Username: "joe"}, "secret")

	sess := session.New(time.Minute)
	sess.State = session.StateAuthenticated
	sess.UserID = "u-1"
	sess.Attributes["k"] = "v"
	require.NoError(t, store.Save(ctx, sess))

	require.True(t, a.Authenticate(ctx, NewBinder(), sess.ID))

	after, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateAuthenticated, after.State)
	assert.Equal(t, "v", after.Attributes["k"])
}
