// Package badgercache is a persistent cache backend on BadgerDB.
// Expiry is delegated to Badger entry TTLs, which have second granularity.
package badgercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vertextoedge/movie-catalog/internal/port"
)

const (
	gcDiscardRatio = 0.5
	deleteBatch    = 1000
)

// Cache stores values in a BadgerDB instance
type Cache struct {
	db *badger.DB
}

var _ port.CacheBackend = (*Cache)(nil)

// Open opens or creates a Badger cache directory. An empty path opens an
// in-memory database.
func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// New wraps an already opened database
func New(db *badger.DB) *Cache {
	return &Cache{db: db}
}

// Get returns the value for key. Badger hides expired entries.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key. TTLs below one second are rounded up.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes the keys
func (c *Cache) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	for _, k := range keys {
		if err := wb.Delete([]byte(k)); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return wb.Flush()
}

// DeletePrefix removes every live key starting with prefix
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys [][]byte

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}

	for start := 0; start < len(keys); start += deleteBatch {
		if err := ctx.Err(); err != nil {
			return start, err
		}
		end := min(start+deleteBatch, len(keys))

		wb := c.db.NewWriteBatch()
		for _, k := range keys[start:end] {
			if err := wb.Delete(k); err != nil {
				wb.Cancel()
				return start, fmt.Errorf("delete prefix %s: %w", prefix, err)
			}
		}
		if err := wb.Flush(); err != nil {
			return start, fmt.Errorf("delete prefix %s: %w", prefix, err)
		}
	}

	return len(keys), nil
}

// PurgeExpired runs value log garbage collection until nothing is left to
// rewrite. Returns the number of value log files rewritten.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	rewritten := 0
	for {
		if err := ctx.Err(); err != nil {
			return rewritten, err
		}

		err := c.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return rewritten, nil
		}
		if err != nil {
			return rewritten, fmt.Errorf("value log gc: %w", err)
		}
		rewritten++
	}
}

// Close closes the database
func (c *Cache) Close() error {
	return c.db.Close()
}
