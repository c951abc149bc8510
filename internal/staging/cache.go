// Package staging implements the preview → confirm protocol for destructive
// and bulk mutations: a staged payload is held under a fresh single-use
// token, and the mutation only executes when the caller presents that token
// together with the entity id it was staged for.
package staging

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the advisory lifetime reported to callers when staging a
// payload. Entries are not actively expired: a token stays valid until it is
// consumed or the process exits. The TTL is metadata for the caller only.
const DefaultTTL = 300 * time.Second

// Entry is one staged payload. EntityID is the identifier the payload was
// staged for; Confirm checks it against the id presented at confirm time.
type Entry struct {
	EntityID string
	Payload  any
}

// Cache is a namespaced, single-use token → payload store. It is the only
// shared mutable state in the core and is safe for concurrent use: staging
// and confirming run from concurrent request handlers.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
}

// NewCache returns an empty cache. A non-positive ttl selects DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
	}
}

// TTL reports the advisory entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Len reports the current number of staged entries across all namespaces.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Store stages a payload under a freshly generated token and returns the
// token. Tokens are UUIDs, so an existing entry is never overwritten.
func (c *Cache) Store(namespace, entityID string, payload any) string {
	token := uuid.New().String()
	c.StoreToken(namespace, token, entityID, payload)
	return token
}

// StoreToken stages a payload under a caller-supplied token. Exists for
// deterministic tests; production callers use Store.
func (c *Cache) StoreToken(namespace, token, entityID string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(namespace, token)] = Entry{EntityID: entityID, Payload: payload}
}

// Consume atomically looks up and removes the entry for (namespace, token).
// A miss (never staged, wrong namespace, or already consumed) reports
// found = false; a consumed token can never be consumed again.
func (c *Cache) Consume(namespace, token string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(namespace, token)
	e, ok := c.entries[k]
	if ok {
		delete(c.entries, k)
	}
	return e, ok
}

// Peek reads an entry without consuming it. Diagnostics only.
func (c *Cache) Peek(namespace, token string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key(namespace, token)]
	return e, ok
}

// ClearNamespace drops every entry staged under the namespace and reports
// how many were removed.
func (c *Cache) ClearNamespace(namespace string) int {
	prefix := namespace + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func key(namespace, token string) string {
	return namespace + ":" + token
}
