// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package patsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer is a minimal client-credentials token endpoint that counts
// how many fetches it served.
func tokenServer(t *testing.T, expiresIn int) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		id, secret, ok := r.BasicAuth()
		if !ok {
			id = r.PostForm.Get("client_id")
			secret = r.PostForm.Get("client_secret")
		}
		if id != "gatehouse" || secret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		n := fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "pat-" + string(rune('a'+n-1)),
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

func TestToken_FetchesAndCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv, fetches := tokenServer(t, 3600)
	source := NewSource()
	source.RegisterIssuer("upstream", IssuerConfig{
		TokenURL:     srv.URL,
		ClientID:     "gatehouse",
		ClientSecret: "s3cret",
	})

	tok, err := source.Token(ctx, "upstream")
	require.NoError(t, err)
	assert.Equal(t, "pat-a", tok.AccessToken)

	// Second call is served from cache.
	tok, err = source.Token(ctx, "upstream")
	require.NoError(t, err)
	assert.Equal(t, "pat-a", tok.AccessToken)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestToken_RefreshesNearExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// expires_in of 5s with a 10s margin makes every token immediately stale.
	srv, fetches := tokenServer(t, 5)
	source := NewSource(WithSafetyMargin(10 * time.Second))
	source.RegisterIssuer("upstream", IssuerConfig{
		TokenURL:     srv.URL,
		ClientID:     "gatehouse",
		ClientSecret: "s3cret",
	})

	_, err := source.Token(ctx, "upstream")
	require.NoError(t, err)
	_, err = source.Token(ctx, "upstream")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestToken_ConcurrentCallersShareOneFetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv, fetches := tokenServer(t, 3600)
	source := NewSource()
	source.RegisterIssuer("upstream", IssuerConfig{
		TokenURL:     srv.URL,
		ClientID:     "gatehouse",
		ClientSecret: "s3cret",
	})

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = source.Token(ctx, "upstream")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), fetches.Load())
}

func TestToken_UnknownIssuer(t *testing.T) {
	t.Parallel()

	source := NewSource()
	_, err := source.Token(context.Background(), "nowhere")
	assert.ErrorContains(t, err, "no credential configuration")
}

func TestToken_InvalidateForcesRefetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv, fetches := tokenServer(t, 3600)
	source := NewSource()
	source.RegisterIssuer("upstream", IssuerConfig{
		TokenURL:     srv.URL,
		ClientID:     "gatehouse",
		ClientSecret: "s3cret",
	})

	_, err := source.Token(ctx, "upstream")
	require.NoError(t, err)
	source.Invalidate("upstream")
	_, err = source.Token(ctx, "upstream")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestToken_UpstreamRejection(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, 3600)
	source := NewSource()
	source.RegisterIssuer("upstream", IssuerConfig{
		TokenURL:     srv.URL,
		ClientID:     "gatehouse",
		ClientSecret: "wrong",
	})

	_, err := source.Token(context.Background(), "upstream")
	assert.ErrorContains(t, err, "fetching service credential")
}
