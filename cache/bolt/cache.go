// Package bolt provides a bbolt-backed completion cache.
package bolt

import (
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	bolt "go.etcd.io/bbolt"

	"github.com/texforge/texforge/cache"
)

var bucketResults = []byte("results")

// Cache implements cache.Cache on a bbolt database file.
//
// bbolt serializes writers internally, satisfying the single-writer
// contract; readers run concurrently.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResults)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Get returns the recorded result for the pair, if any.
func (c *Cache) Get(fp digest.Digest, recipeID string) (cache.Result, bool, error) {
	var res cache.Result
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketResults).Get([]byte(cache.Key(fp, recipeID)))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return cache.Result{}, false, fmt.Errorf("cache: get: %w", err)
	}
	return res, found, nil
}

// Put records a result, overwriting any previous outcome for the pair.
func (c *Cache) Put(res cache.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache: encode record: %w", err)
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResults).Put([]byte(cache.Key(res.Fingerprint, res.RecipeID)), raw)
	})
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
