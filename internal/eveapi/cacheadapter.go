package eveapi

import (
	"time"

	"github.com/gohugoio/httpcache"

	"github.com/ErikKalkoken/evesync/internal/app/pcache"
)

// CacheAdapter enables the use of pcache with httpcache.
type CacheAdapter struct {
	c       *pcache.PCache
	prefix  string
	timeout time.Duration
}

var _ httpcache.Cache = (*CacheAdapter)(nil)

// NewCacheAdapter returns a new CacheAdapter.
// The prefix is added to all cache keys to prevent conflicts.
// Keys are stored with the given cache timeout. A timeout of 0 means that keys never expire.
func NewCacheAdapter(c *pcache.PCache, prefix string, timeout time.Duration) *CacheAdapter {
	return &CacheAdapter{c: c, prefix: prefix, timeout: timeout}
}

func (ca *CacheAdapter) Get(key string) ([]byte, bool) {
	return ca.c.Get(ca.makeKey(key))
}

func (ca *CacheAdapter) Set(key string, b []byte) {
	ca.c.Set(ca.makeKey(key), b, ca.timeout)
}

func (ca *CacheAdapter) Delete(key string) {
	ca.c.Delete(ca.makeKey(key))
}

func (ca *CacheAdapter) makeKey(key string) string {
	return ca.prefix + key
}
