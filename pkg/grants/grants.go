// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package grants exposes the active-grant lookup used when a previously
// issued access token is presented as a client credential. Grant issuance
// itself lives elsewhere; this package only answers "is this token backed by
// a live grant, and for which client".
package grants

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no grant backs the given access token.
var ErrNotFound = errors.New("grant not found")

// Grant is an issued authorization record backing an access token.
type Grant struct {
	// AccessToken is the opaque token value the grant is looked up by.
	AccessToken string

	ClientID string
	Subject  string

	ExpiresAt time.Time
	Revoked   bool
}

// Active reports whether the grant's access token is still usable.
func (g *Grant) Active() bool {
	return !g.Revoked && time.Now().Before(g.ExpiresAt)
}

// Store looks up active grants by access token.
type Store interface {
	// LookupByAccessToken returns the grant backing the token, if any.
	// An inactive grant is still returned; callers check Active themselves
	// so they can distinguish "unknown token" from "expired/revoked token".
	LookupByAccessToken(ctx context.Context, token string) (*Grant, error)
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string]*Grant
}

// NewMemoryStore creates an empty in-memory grant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]*Grant)}
}

// Put adds or replaces a grant.
func (s *MemoryStore) Put(g *Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.AccessToken] = g
}

// Revoke marks the grant backing the token as revoked.
func (s *MemoryStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.grants[token]; ok {
		g.Revoked = true
	}
}

// LookupByAccessToken returns the grant backing the token, if any.
func (s *MemoryStore) LookupByAccessToken(_ context.Context, token string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[token]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *g
	return &dup, nil
}
