// Package leveldb provides a persistent implementation of conneg.Cache using
// github.com/syndtr/goleveldb as the underlying storage.
//
// Entries are namespaced by a key prefix so that negotiation results can share a
// database with other data, or with negotiators for other resources:
//
//	db, err := goleveldb.OpenFile(path, nil)
//	cache := leveldb.Make(db, leveldb.WithPrefix("conneg:api:"))
package leveldb

import (
	"errors"
	"log/slog"

	"github.com/lestrrat-go/option"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.rtnl.ai/conneg"
)

// DefaultPrefix namespaces the keys of caches created without WithPrefix.
const DefaultPrefix = "conneg:"

// Cache is an implementation of conneg.Cache with leveldb storage. Negotiation results
// persist across restarts of the process.
type Cache struct {
	db     *leveldb.DB
	prefix []byte
	owned  bool
}

var _ conneg.Cache = (*Cache)(nil)

type Option = option.Interface

type identPrefix struct{}

func (identPrefix) String() string { return "WithPrefix" }

// WithPrefix stores entries under the given key prefix instead of DefaultPrefix.
func WithPrefix(prefix string) Option {
	return option.New(identPrefix{}, prefix)
}

// New returns a cache that will store negotiation results in a leveldb database at the
// path. The database is closed when the cache is.
func New(path string, opts ...Option) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	cache := Make(db, opts...)
	cache.owned = true
	return cache, nil
}

// Make returns a cache using the specified db instance as the underlying storage. The
// caller remains responsible for closing the db.
func Make(db *leveldb.DB, opts ...Option) *Cache {
	cache := &Cache{db: db, prefix: []byte(DefaultPrefix)}
	for _, opt := range opts {
		if opt.Ident() == (identPrefix{}) {
			cache.prefix = []byte(opt.Value().(string))
		}
	}
	return cache
}

func (c *Cache) key(key string) []byte {
	k := make([]byte, 0, len(c.prefix)+len(key))
	k = append(k, c.prefix...)
	return append(k, key...)
}

// Get a value from the cache for the specified key. If any error other than
// ErrNotFound occurs it is logged and false is returned.
func (c *Cache) Get(key string) ([]byte, bool) {
	data, err := c.db.Get(c.key(key), nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			conneg.GetLogger().Warn("failed to read from leveldb negotiation cache", slog.String("prefix", string(c.prefix)), slog.Any("error", err))
		}
		return nil, false
	}
	return data, true
}

// Put a value into the cache with the specified key. If an error occurs it is logged.
func (c *Cache) Put(key string, value []byte) {
	if err := c.db.Put(c.key(key), value, nil); err != nil {
		conneg.GetLogger().Warn("failed to write to leveldb negotiation cache", slog.String("prefix", string(c.prefix)), slog.Any("error", err))
	}
}

// Del removes a value from the cache for the specified key. If an error occurs it is logged.
func (c *Cache) Del(key string) {
	if err := c.db.Delete(c.key(key), nil); err != nil {
		conneg.GetLogger().Warn("failed to delete from leveldb negotiation cache", slog.String("prefix", string(c.prefix)), slog.Any("error", err))
	}
}

// Purge deletes every entry under the cache's prefix, e.g. after the available media
// types of a service change and the stored results can no longer be reached.
func (c *Cache) Purge() (err error) {
	iter := c.db.NewIterator(util.BytesPrefix(c.prefix), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(iter.Key())
	}

	if err = iter.Error(); err != nil {
		return err
	}

	if err = c.db.Write(batch, nil); err != nil {
		return err
	}

	conneg.GetLogger().Debug("purged leveldb negotiation cache", slog.String("prefix", string(c.prefix)), slog.Int("entries", batch.Len()))
	return nil
}

// Close closes the underlying leveldb database if it was opened by New.
// Implements io.Closer.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}
