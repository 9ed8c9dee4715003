/*
Package ristretto provides a bounded, concurrent implementation of conneg.Cache using
the github.com/dgraph-io/ristretto library as the underlying storage.

Unlike conneg.InMemoryCache the cache is bounded, admitting and evicting entries by
frequency, so it can front public services that see arbitrary Accept headers.

Example Usage:

	cache, err := ristretto.New(&ristretto.Config{
		NumCounters: 1e5,     // number of keys to track frequency of (100K).
		MaxCost:     1 << 24, // maximum cost of cache (16MB).
		BufferItems: 64,      // number of keys per Get buffer.
	})

	negotiator, err := conneg.NewNegotiator(available, conneg.WithCache(cache))
	http.Handle("/", negotiator.Handler(handler))

	// Later ...
	cache.Close()
*/
package ristretto

import (
	"io"
	"log/slog"

	"github.com/dgraph-io/ristretto/v2"
	"go.rtnl.ai/conneg"
)

// Cache is a conneg.Cache backed by ristretto.
type Cache struct {
	cache *ristretto.Cache[string, []byte]
	cost  func([]byte) int64
}

var _ conneg.Cache = (*Cache)(nil)
var _ io.Closer = (*Cache)(nil)

// Create a new Ristretto-backed conneg.Cache with the specified configuration.
func New(config *Config) (_ *Cache, err error) {
	cache := &Cache{cost: config.Cost}
	if cache.cache, err = ristretto.NewCache(config.convert()); err != nil {
		return nil, err
	}

	return cache, nil
}

// Get returns the value (if any) and a boolean representing whether the value was found
// or not. The value can be nil and the boolean can be true at the same time. Get will
// not return expired items.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.cache.Get(key)
}

// Put attempts to add the key-value item to the cache. If the cache has reached the
// maximum size, it may evict other items to make room for the new item. The cost of
// the item is its length unless the Config defines a Cost function, in which case that
// function determines it. Items rejected by the admission policy are logged at debug
// level and the negotiation is recomputed on the next request.
func (c *Cache) Put(key string, value []byte) {
	var cost int64
	if c.cost == nil {
		cost = int64(len(key) + len(value))
	}

	if !c.cache.Set(key, value, cost) {
		conneg.GetLogger().Debug("ristretto cache rejected negotiation result", slog.String("key", key))
	}
}

// Del deletes the key-value item from the cache if it exists.
func (c *Cache) Del(key string) {
	c.cache.Del(key)
}

// Close stops all goroutines and closes all channels.
// Implements io.Closer.
func (c *Cache) Close() error {
	c.cache.Close()
	return nil
}

// Wait blocks until all buffered writes have been applied.
// This ensures a call to Put() will be visible to future calls to Get().
func (c *Cache) Wait() {
	c.cache.Wait()
}
