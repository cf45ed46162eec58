package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketTokens = []byte("tokens")
	tokenKey     = []byte("current")
)

// Cache persists the native flow's token set in an app-scoped bbolt database
// so tokens survive process restarts. The browser flow never writes here.
type Cache struct {
	db *bbolt.DB
}

// OpenCache opens (or creates) the token cache at dbPath.
func OpenCache(dbPath string) (*Cache, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open token cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTokens)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token bucket: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Save stores the token set, replacing any previous one.
func (c *Cache) Save(ctx context.Context, tokens *TokenSet) error {
	if tokens == nil || tokens.AccessToken == "" {
		return fmt.Errorf("refusing to save empty token set")
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		if bucket == nil {
			return fmt.Errorf("token bucket not found")
		}
		data, err := json.Marshal(tokens)
		if err != nil {
			return fmt.Errorf("failed to marshal token set: %w", err)
		}
		return bucket.Put(tokenKey, data)
	})
}

// Load returns the cached token set. It returns ErrTokenNotFound both when
// nothing is stored and when the stored record is structurally invalid
// (missing access token, non-positive expiry), so callers never see a
// partially valid token set.
func (c *Cache) Load(ctx context.Context) (*TokenSet, error) {
	var tokens *TokenSet

	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		if bucket == nil {
			return fmt.Errorf("token bucket not found")
		}
		data := bucket.Get(tokenKey)
		if data == nil {
			return ErrTokenNotFound
		}
		tokens = &TokenSet{}
		if err := json.Unmarshal(data, tokens); err != nil {
			return ErrTokenNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if tokens.AccessToken == "" || tokens.ExpiresAt <= 0 {
		return nil, ErrTokenNotFound
	}
	return tokens, nil
}

// Clear wipes the cached token set. Clearing an empty cache is not an error;
// this is the wipe-wholesale path taken on irrecoverable auth failures.
func (c *Cache) Clear(ctx context.Context) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(tokenKey)
	})
}
