// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package session provides the server-side session record that tracks
// authentication progress, the step ledger over its attribute map, and the
// pluggable session stores.
package session

import (
	"time"

	"github.com/google/uuid"
)

// State describes the authentication state of a session.
type State string

const (
	// StateUnauthenticated is the state of a freshly created session.
	StateUnauthenticated State = "unauthenticated"

	// StateAuthenticated is reached only after the workflow engine confirmed
	// the final step passed, or a direct credential/session check succeeded.
	StateAuthenticated State = "authenticated"

	// StateExpired marks a session past its lifetime.
	StateExpired State = "expired"
)

// Reserved attribute keys. The session attribute map is the sole durable
// store for workflow progress; these keys must not be used by scripts for
// their own extra parameters.
const (
	// KeyAuthStep holds the current workflow step as a decimal string.
	KeyAuthStep = "auth_step"

	// KeyACR holds the name of the script governing the workflow.
	KeyACR = "acr_values"

	// stepPassedPrefix prefixes the per-step pass markers (auth_step_passed_<n>).
	stepPassedPrefix = "auth_step_passed_"
)

// Session is the server-side record tracking authentication progress and the
// final authenticated identity, keyed by an opaque session id.
type Session struct {
	ID         string            `json:"id"`
	State      State             `json:"state"`
	Attributes map[string]string `json:"attributes"`

	// UserID and ClientID reference the bound principal once authentication
	// succeeds. At most one of them is expected for a given session.
	UserID   string `json:"user_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New creates an unauthenticated session with a random id and the given lifetime.
func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		State:      StateUnauthenticated,
		Attributes: make(map[string]string),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// Expired reports whether the session is past its lifetime.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Clone returns a deep copy of the session. Stores hand out copies so that
// a Reload always yields a snapshot independent of the caller's mutations.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Attributes = make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		dup.Attributes[k] = v
	}
	return &dup
}
