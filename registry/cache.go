package registry

import (
	"sync"
	"time"

	"github.com/tvmlabs/tvmabi/schema"
)

var cacheInvalidation = 60 * time.Second

// cache is a short-lived, name-keyed cache of resolved contracts: hot
// lookups avoid a Postgres round trip, but entries older than
// cacheInvalidation are dropped so a Put from another process is
// eventually picked up.
type cache struct {
	sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	doc     *schema.Contract
	storedAt time.Time
}

func newCache() *cache {
	return &cache{entries: map[string]cacheEntry{}}
}

func (c *cache) set(name string, doc *schema.Contract) {
	c.Lock()
	defer c.Unlock()
	c.entries[name] = cacheEntry{doc: doc, storedAt: time.Now()}
}

func (c *cache) get(name string) (*schema.Contract, bool) {
	c.Lock()
	defer c.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > cacheInvalidation {
		delete(c.entries, name)
		return nil, false
	}
	return e.doc, true
}

func (c *cache) del(name string) {
	c.Lock()
	defer c.Unlock()
	delete(c.entries, name)
}
