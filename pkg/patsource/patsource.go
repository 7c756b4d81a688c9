// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package patsource obtains and caches the service credential (protection
// API token) this server presents to upstream authorization servers. One
// credential is kept per issuer and refreshed ahead of its expiry.
package patsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/corvidae/gatehouse/pkg/logger"
)

// DefaultSafetyMargin is how long before its expiry a cached token is
// treated as stale. Refreshing early keeps a token presented upstream from
// dying mid-request.
const DefaultSafetyMargin = 10 * time.Second

// IssuerConfig describes one upstream issuer the source can obtain a
// credential from.
type IssuerConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Source hands out one valid service credential per issuer. Tokens are
// fetched with the client-credentials grant, cached until shortly before
// expiry, and refreshed by at most one goroutine per issuer at a time.
type Source struct {
	mu      sync.RWMutex
	issuers map[string]*clientcredentials.Config
	cache   map[string]*oauth2.Token

	group  singleflight.Group
	margin time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithSafetyMargin overrides the freshness window before expiry.
func WithSafetyMargin(margin time.Duration) Option {
	return func(s *Source) {
		s.margin = margin
	}
}

// NewSource creates an empty source. Issuers are added with RegisterIssuer.
func NewSource(opts ...Option) *Source {
	s := &Source{
		issuers: make(map[string]*clientcredentials.Config),
		cache:   make(map[string]*oauth2.Token),
		margin:  DefaultSafetyMargin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterIssuer adds or replaces the credential configuration for an
// issuer. Any cached token for that issuer is discarded.
func (s *Source) RegisterIssuer(issuer string, cfg IssuerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuers[issuer] = &clientcredentials.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}
	delete(s.cache, issuer)
}

// Token returns a currently valid credential for the issuer, fetching a new
// one when the cache is empty or about to expire. Concurrent callers for
// the same issuer share a single fetch.
func (s *Source) Token(ctx context.Context, issuer string) (*oauth2.Token, error) {
	if tok := s.cached(issuer); tok != nil {
		return tok, nil
	}

	v, err, _ := s.group.Do(issuer, func() (any, error) {
		// A concurrent caller may have refreshed while we waited.
		if tok := s.cached(issuer); tok != nil {
			return tok, nil
		}

		s.mu.RLock()
		cfg, ok := s.issuers[issuer]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("no credential configuration for issuer %q", issuer)
		}

		tok, err := cfg.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching service credential from %s: %w", issuer, err)
		}
		logger.Debugw("service credential refreshed", "issuer", issuer, "expiry", tok.Expiry)

		s.mu.Lock()
		s.cache[issuer] = tok
		s.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// Invalidate drops the cached token for an issuer, forcing the next Token
// call to fetch a fresh one.
func (s *Source) Invalidate(issuer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, issuer)
}

// cached returns the stored token when it is still comfortably fresh.
func (s *Source) cached(issuer string) *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.cache[issuer]
	if !ok || tok.AccessToken == "" {
		return nil
	}
	if !tok.Expiry.IsZero() && time.Until(tok.Expiry) <= s.margin {
		return nil
	}
	return tok
}
