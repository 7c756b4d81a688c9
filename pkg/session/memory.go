// Copyright 2025 Corvidae Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/corvidae/gatehouse/pkg/logger"
)

// MemoryStore implements Store with an in-memory map. It is thread-safe and
// suitable for development, testing and single-instance deployments; use
// RedisStore for anything distributed.
type MemoryStore struct {
	mu sync.RWMutex

	// sessions maps session id -> stored session. Expiry is tracked on the
	// session itself; the background cleanup removes stale entries so the map
	// does not grow without bound between lookups.
	sessions map[string]*Session

	// cleanupInterval is how often the background cleanup runs
	cleanupInterval time.Duration

	// stopCleanup is used to signal the cleanup goroutine to stop
	stopCleanup chan struct{}

	// cleanupDone is closed when the cleanup goroutine has fully stopped
	cleanupDone chan struct{}

	closeOnce sync.Once
}

// MemoryStoreOption configures a MemoryStore instance.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets a custom cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStore creates a new MemoryStore and starts the background cleanup
// goroutine.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions:        make(map[string]*Session),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Start background cleanup goroutine
	go s.cleanupLoop()

	return s
}

// Get retrieves a live session by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || sess.Expired() {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// Save persists the session, replacing any stored version.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Reload performs a fresh read; for the memory store this is the same lookup
// as Get, handing out a new copy.
func (s *MemoryStore) Reload(ctx context.Context, id string) (*Session, error) {
	return s.Get(ctx, id)
}

// Delete removes the session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close stops the background cleanup goroutine and waits for it to finish.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
		<-s.cleanupDone
	})
	return nil
}

// cleanupLoop periodically removes expired sessions.
func (s *MemoryStore) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired() {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debugw("session cleanup removed expired entries", "count", removed)
	}
}
