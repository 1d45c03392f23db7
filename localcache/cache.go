// Package localcache keeps the last good snapshot of each space in an
// embedded BadgerDB, so a space stays readable while the store is
// unreachable.
package localcache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Cache is an earmark.SnapshotCache backed by BadgerDB.
type Cache struct {
	db *badger.DB
}

// Open opens the cache at dir. An empty dir opens an in-memory cache, used
// in tests.
func Open(dir string) (*Cache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func key(space string) []byte { return []byte("snapshot/" + space) }

// Get returns the cached snapshot bytes of a space.
func (c *Cache) Get(space string) ([]byte, bool) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(space))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) || err != nil {
		return nil, false
	}
	return data, true
}

// Put stores the snapshot bytes of a space, replacing any previous one.
func (c *Cache) Put(space string, data []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(space), data)
	})
}

// Close releases the database.
func (c *Cache) Close() error { return c.db.Close() }
