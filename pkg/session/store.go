// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no live session exists for the given id.
// Expired sessions are reported as not found.
var ErrNotFound = errors.New("session not found")

// Default timeouts and intervals for session stores.
const (
	// DefaultTTL is the session lifetime applied when the config does not set one.
	DefaultTTL = 30 * time.Minute

	// DefaultCleanupInterval is how often the memory store's background cleanup runs.
	DefaultCleanupInterval = 5 * time.Minute
)

// Store is the session persistence contract. Implementations hand out
// independent copies: mutations to a returned session are only visible to
// other callers after Save.
type Store interface {
	// Get retrieves a live session by id.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists the session, replacing any stored version.
	Save(ctx context.Context, s *Session) error

	// Reload performs a fresh read of the session, bypassing any caller-side
	// copy. Used by the workflow engine before acting on script decisions.
	Reload(ctx context.Context, id string) (*Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
