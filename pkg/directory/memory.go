// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/corvidae/gatehouse/pkg/session"
)

// MemoryClientDirectory is a mutex-guarded in-memory ClientDirectory.
type MemoryClientDirectory struct {
	mu   sync.RWMutex
	byID map[string]*Client
	byDN map[string]*Client
}

// NewMemoryClientDirectory creates an empty in-memory client directory.
func NewMemoryClientDirectory() *MemoryClientDirectory {
	return &MemoryClientDirectory{
		byID: make(map[string]*Client),
		byDN: make(map[string]*Client),
	}
}

// Register adds or replaces a client.
func (d *MemoryClientDirectory) Register(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[c.ID] = c
	if c.DN != "" {
		d.byDN[c.DN] = c
	}
}

// GetByID looks up a client by client_id.
func (d *MemoryClientDirectory) GetByID(_ context.Context, id string) (*Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *c
	return &dup, nil
}

// GetByDN looks up a client by its distinguished name.
func (d *MemoryClientDirectory) GetByDN(_ context.Context, dn string) (*Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byDN[dn]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *c
	return &dup, nil
}

// Authenticate verifies the shared secret for the given client id.
func (d *MemoryClientDirectory) Authenticate(_ context.Context, id, secret string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1, nil
}

// MemoryUserDirectory is a mutex-guarded in-memory UserDirectory.
type MemoryUserDirectory struct {
	mu        sync.RWMutex
	users     map[string]*User
	passwords map[string]string
}

// NewMemoryUserDirectory creates an empty in-memory user directory.
func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{
		users:     make(map[string]*User),
		passwords: make(map[string]string),
	}
}

// Register adds or replaces a user with the given password.
func (d *MemoryUserDirectory) Register(u *User, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.Username] = u
	d.passwords[u.Username] = password
}

// Authenticate verifies a username/password pair.
func (d *MemoryUserDirectory) Authenticate(_ context.Context, username, password string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stored, ok := d.passwords[username]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1, nil
}

// GetByUsername looks up a user account by username.
func (d *MemoryUserDirectory) GetByUsername(_ context.Context, username string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *u
	return &dup, nil
}

// GetBySession resolves the user bound to an authenticated session.
func (d *MemoryUserDirectory) GetBySession(_ context.Context, s *session.Session) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.ID == s.UserID {
			dup := *u
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}
