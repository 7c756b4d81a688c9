// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidae/gatehouse/pkg/session"
)

func TestMemoryClientDirectory_Lookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := NewMemoryClientDirectory()
	dir.Register(&Client{
		ID:     "cli-1",
		Secret: "s3cret",
		DN:     "inum=cli-1,ou=clients,o=gatehouse",
		Method: MethodClientSecretBasic,
	})

	got, err := dir.GetByID(ctx, "cli-1")
	require.NoError(t, err)
	assert.Equal(t, MethodClientSecretBasic, got.Method)

	got, err = dir.GetByDN(ctx, "inum=cli-1,ou=clients,o=gatehouse")
	require.NoError(t, err)
	assert.Equal(t, "cli-1", got.ID)

	_, err = dir.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryClientDirectory_Authenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := NewMemoryClientDirectory()
	dir.Register(&Client{ID: "cli-1", Secret: "s3cret", Method: MethodClientSecretPost})

	tests := []struct {
		name   string
		id     string
		secret string
		want   bool
	}{
		{"correct secret", "cli-1", "s3cret", true},
		{"wrong secret", "cli-1", "nope", false},
		{"unknown client", "ghost", "s3cret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ok, err := dir.Authenticate(ctx, tt.id, tt.secret)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestMemoryUserDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := NewMemoryUserDirectory()
	dir.Register(&User{ID: "u-1", Username: "joe"}, "secret")

	ok, err := dir.Authenticate(ctx, "joe", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.Authenticate(ctx, "joe", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	sess := session.New(time.Minute)
	sess.UserID = "u-1"
	u, err := dir.GetBySession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "joe", u.Username)

	sess.UserID = "gone"
	_, err = dir.GetBySession(ctx, sess)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Public(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Client{Method: MethodNone}).Public())
	assert.False(t, (&Client{Method: MethodClientSecretBasic}).Public())
}
