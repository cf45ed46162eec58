package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tokens.db")
	cache, err := OpenCache(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cache.Close())
	})
	return cache
}

func TestCache_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	// Empty cache reports ErrTokenNotFound.
	_, err := cache.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	tokens := &TokenSet{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
	require.NoError(t, cache.Save(ctx, tokens))

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokens.AccessToken, got.AccessToken)
	assert.Equal(t, tokens.RefreshToken, got.RefreshToken)
	assert.Equal(t, tokens.ExpiresAt, got.ExpiresAt)

	require.NoError(t, cache.Clear(ctx))
	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Clearing an already empty cache is fine.
	require.NoError(t, cache.Clear(ctx))
}

func TestCache_RejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	// Save refuses an empty access token outright.
	err := cache.Save(ctx, &TokenSet{ExpiresAt: time.Now().Unix()})
	assert.Error(t, err)

	// Structurally broken records are reported as not-found on load, never
	// as a partially valid token set.
	writeRaw := func(data []byte) {
		err := cache.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketTokens).Put(tokenKey, data)
		})
		require.NoError(t, err)
	}

	writeRaw([]byte("not json"))
	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	writeRaw([]byte(`{"refresh_token":"r","expires_at":123}`)) // missing access token
	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	writeRaw([]byte(`{"access_token":"a","expires_at":0}`)) // non-positive expiry
	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenSet_Valid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		tokens *TokenSet
		want   bool
	}{
		{"nil set", nil, false},
		{"empty access token", &TokenSet{ExpiresAt: now.Add(time.Hour).Unix()}, false},
		{"fresh token", &TokenSet{AccessToken: "a", ExpiresAt: now.Add(time.Hour).Unix()}, true},
		{"expired token", &TokenSet{AccessToken: "a", ExpiresAt: now.Add(-time.Hour).Unix()}, false},
		{"inside leeway window", &TokenSet{AccessToken: "a", ExpiresAt: now.Add(30 * time.Second).Unix()}, false},
		{"no expiry metadata", &TokenSet{AccessToken: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tokens.Valid(DefaultLeeway))
		})
	}
}
