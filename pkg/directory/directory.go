// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package directory defines the client and user records and the lookup
// contracts the authentication core consumes. The concrete backing store
// (LDAP, SQL, ...) is an external concern; in-memory implementations are
// provided for wiring and tests.
package directory

import (
	"context"
	"errors"

	"github.com/corvidae/gatehouse/pkg/session"
)

// AuthMethod is the client authentication method registered on a client.
type AuthMethod string

const (
	// MethodNone marks a public client that authenticates with no secret.
	MethodNone AuthMethod = "none"

	// MethodClientSecretBasic requires the shared secret via HTTP Basic auth.
	MethodClientSecretBasic AuthMethod = "client_secret_basic"

	// MethodClientSecretPost requires the shared secret via body parameters.
	MethodClientSecretPost AuthMethod = "client_secret_post"

	// MethodClientSecretJWT requires a JWT assertion signed with the shared secret.
	MethodClientSecretJWT AuthMethod = "client_secret_jwt"

	// MethodPrivateKeyJWT requires a JWT assertion signed with the client's private key.
	MethodPrivateKeyJWT AuthMethod = "private_key_jwt"

	// MethodTLSClientAuth establishes trust via mutual TLS.
	MethodTLSClientAuth AuthMethod = "tls_client_auth"

	// MethodAccessToken establishes trust via a previously issued access token.
	MethodAccessToken AuthMethod = "access_token"
)

// ErrNotFound is returned when a client or user lookup yields nothing.
var ErrNotFound = errors.New("directory: entry not found")

// Client is a registered OAuth2 client.
type Client struct {
	ID     string
	Secret string

	// DN is the directory distinguished name, used by authentication filters
	// that derive a client from arbitrary request parameters.
	DN string

	Method AuthMethod

	// JWKSURI is where the client publishes its signing keys, required for
	// private_key_jwt assertions.
	JWKSURI string
}

// Public reports whether the client authenticates without credentials.
func (c *Client) Public() bool {
	return c.Method == MethodNone
}

// User is an end-user account resolved from the user directory.
type User struct {
	ID       string
	Username string
}

// ClientDirectory resolves and verifies registered clients.
type ClientDirectory interface {
	// GetByID looks up a client by client_id.
	GetByID(ctx context.Context, id string) (*Client, error)

	// GetByDN looks up a client by its directory distinguished name.
	GetByDN(ctx context.Context, dn string) (*Client, error)

	// Authenticate verifies the shared secret for the given client id.
	// It reports false for unknown clients; it never returns an error for a
	// plain credential mismatch.
	Authenticate(ctx context.Context, id, secret string) (bool, error)
}

// UserDirectory resolves and verifies end users.
type UserDirectory interface {
	// Authenticate verifies a username/password pair.
	Authenticate(ctx context.Context, username, password string) (bool, error)

	// GetByUsername looks up a user account by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetBySession resolves the user bound to an authenticated session.
	// A stale or dangling reference returns ErrNotFound; callers must treat
	// that as an authentication failure, not continue silently.
	GetBySession(ctx context.Context, s *session.Session) (*User, error)
}
