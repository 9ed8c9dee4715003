package conneg

import "sync"

// InMemoryCache is an implementation of Cache that stores negotiation results in an
// in-memory map. The map is unbounded, which is fine for the small number of distinct
// Accept headers most services see; use the ristretto backend to bound memory.
type InMemoryCache struct {
	sync.RWMutex
	store map[string][]byte
}

// Get the value stored for the key and true if present.
func (c *InMemoryCache) Get(key string) (val []byte, ok bool) {
	c.RLock()
	val, ok = c.store[key]
	c.RUnlock()
	return
}

// Put stores the value with the specified key.
func (c *InMemoryCache) Put(key string, val []byte) {
	c.Lock()
	if c.store == nil {
		c.store = make(map[string][]byte)
	}
	c.store[key] = val
	c.Unlock()
}

// Del removes the value associated with the key.
func (c *InMemoryCache) Del(key string) {
	c.Lock()
	delete(c.store, key)
	c.Unlock()
}

// Len returns the number of stored entries.
func (c *InMemoryCache) Len() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.store)
}
