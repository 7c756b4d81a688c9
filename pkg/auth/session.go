package auth

import (
	"context"

	"github.com/corvidae/gatehouse/pkg/directory"
	"github.com/corvidae/gatehouse/pkg/logger"
	"github.com/corvidae/gatehouse/pkg/session"
)

// SessionAuthenticator validates an existing session identifier and
// short-circuits re-authentication. This path is a pure read/validate: it
// never mutates session state.
type SessionAuthenticator struct {
	sessions session.Store
	users    directory.UserDirectory
	clients  directory.ClientDirectory
}

// NewSessionAuthenticator wires a session authenticator.
func NewSessionAuthenticator(
	sessions session.Store,
	users directory.UserDirectory,
	clients directory.ClientDirectory,
) *SessionAuthenticator {
	return &SessionAuthenticator{
		sessions: sessions,
		users:    users,
		clients:  clients,
	}
}

// Authenticate reloads the session and, if it is authenticated, resolves and
// binds the referenced principal. A stale user or client reference fails the
// attempt; it is never silently skipped.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, binder *Binder, id string) bool {
	sess, err := a.sessions.Reload(ctx, id)
	if err != nil {
		logger.Debugw("session lookup failed", "session_id", id, "error", err)
		return false
	}
	if sess.State != session.StateAuthenticated {
		return false
	}

	switch {
	case sess.UserID != "":
		user, err := a.users.GetBySession(ctx, sess)
		if err != nil {
			logger.Warnw("authenticated session references unknown user",
				"session_id", id,
				"user_id", sess.UserID,
				"error", err,
			)
			return false
		}
		binder.BindUser(user)
	case sess.ClientID != "":
		client, err := a.clients.GetByID(ctx, sess.ClientID)
		if err != nil {
			logger.Warnw("authenticated session references unknown client",
				"session_id", id,
				"client_id", sess.ClientID,
				"error", err,
			)
			return false
		}
		binder.BindClient(client, true)
	default:
		return false
	}
	return true
}
