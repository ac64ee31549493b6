package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// Fingerprint derives the content identity of one (schema, action)
// pair. Compilation is pure, so equal fingerprints guarantee
// byte-identical artifacts.
func Fingerprint(schema *Schema, action *ActionDefinition) (string, error) {
	h := sha256.New()
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	actionJSON, err := json.Marshal(action)
	if err != nil {
		return "", err
	}
	h.Write(schemaJSON)
	h.Write([]byte{0})
	h.Write(actionJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Cache memoizes compiled procedures by fingerprint. Safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	proc  *Procedure
	diags Diagnostics
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

func (c *Cache) get(key string) (*Procedure, Diagnostics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.proc, e.diags, ok
}

func (c *Cache) put(key string, proc *Procedure, diags Diagnostics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{proc: proc, diags: diags}
}

// Len returns the number of cached compilations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CompileCached compiles through the cache. Failed compilations are
// cached too: the diagnostics for a given input never change.
func (c *Compiler) CompileCached(cache *Cache, action *ActionDefinition) (*Procedure, Diagnostics, error) {
	key, err := Fingerprint(c.schema, action)
	if err != nil {
		return nil, nil, err
	}
	if proc, diags, ok := cache.get(key); ok {
		return proc, diags, nil
	}
	proc, diags := c.Compile(action)
	cache.put(key, proc, diags)
	return proc, diags, nil
}
