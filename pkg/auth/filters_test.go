package auth

import (
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Apply(t *testing.T) {
	t.Parallel()

	f := Filter{
		Param:      "client_id",
		Pattern:    regexp.MustCompile(`device-(\d+)`),
		DNTemplate: "inum={},ou=clients,o=gatehouse",
	}

	dn, ok := f.Apply(url.Values{"client_id": {"device-42"}})
	require.True(t, ok)
	assert.Equal(t, "inum=42,ou=clients,o=gatehouse", dn)

	// Partial matches are rejected: the pattern must cover the whole value.
	_, ok = f.Apply(url.Values{"client_id": {"device-42-extra"}})
	assert.False(t, ok)

	_, ok = f.Apply(url.Values{"client_id": {"other"}})
	assert.False(t, ok)

	_, ok = f.Apply(url.Values{})
	assert.False(t, ok)
}

func TestFilter_ApplyWithoutCaptureGroup(t *testing.T) {
	t.Parallel()

	f := Filter{
		Param:      "device_token",
		Pattern:    regexp.MustCompile(`[a-f0-9]{8}`),
		DNTemplate: "token={}",
	}

	dn, ok := f.Apply(url.Values{"device_token": {"deadbeef"}})
	require.True(t, ok)
	assert.Equal(t, "token=deadbeef", dn)
}

func TestFilterChain_FirstMatchWins(t *testing.T) {
	t.Parallel()

	chain := NewFilterChain([]Filter{
		{Param: "a", Pattern: regexp.MustCompile(`x`), DNTemplate: "dn=a"},
		{Param: "b", Pattern: regexp.MustCompile(`y`), DNTemplate: "dn=b"},
	})

	dn, ok := chain.Derive(url.Values{"a": {"x"}, "b": {"y"}})
	require.True(t, ok)
	assert.Equal(t, "dn=a", dn)

	dn, ok = chain.Derive(url.Values{"b": {"y"}})
	require.True(t, ok)
	assert.Equal(t, "dn=b", dn)

	_, ok = chain.Derive(url.Values{"c": {"z"}})
	assert.False(t, ok)
}

func TestFilterChain_Disabled(t *testing.T) {
	t.Parallel()

	var nilChain *FilterChain
	assert.False(t, nilChain.Enabled())

	_, ok := nilChain.Derive(url.Values{"a": {"x"}})
	assert.False(t, ok)

	empty := NewFilterChain(nil)
	assert.False(t, empty.Enabled())
}
