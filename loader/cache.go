package loader

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const DefaultCacheSize = 100

// Cache holds parsed images keyed by a digest of their bytes, so repeated
// execs of the same binary skip ELF parsing.
type Cache struct {
	mu sync.RWMutex

	cache *lru.ARCCache
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}

	return &Cache{cache: cache}
}

func (c *Cache) Lookup(key string) (*Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}

	return val.(*Image), true
}

func (c *Cache) Set(key string, img *Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key, img)
}

func (c *Cache) Len() int {
	return c.cache.Len()
}
