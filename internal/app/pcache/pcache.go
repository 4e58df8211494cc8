// Package pcache implements a persistent cache.
//
// It serves as the backend for caching responses of the remote API across runs.
package pcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
)

// opTimeout is the timeout for a single cache operation.
const opTimeout = 5 * time.Second

// CacheStorage defines the storage used by the cache.
type CacheStorage interface {
	CacheClear(ctx context.Context) error
	CacheCleanup(ctx context.Context) (int, error)
	CacheDelete(ctx context.Context, key string) error
	CacheExists(ctx context.Context, key string) (bool, error)
	CacheGet(ctx context.Context, key string) ([]byte, error)
	CacheSet(ctx context.Context, arg storage.CacheSetParams) error
}

// PCache is a persistent cache. It can automatically remove expired items.
//
// Storage errors are logged and reported as cache misses.
type PCache struct {
	st        CacheStorage
	closeC    chan struct{}
	closeOnce sync.Once
	hits      atomic.Int64
	misses    atomic.Int64
	failures  atomic.Int64
}

// Stats are the counters of a cache since it was created.
type Stats struct {
	Hits     int64
	Misses   int64
	Failures int64
}

// Stats returns the current counters.
func (c *PCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Failures: c.failures.Load()}
}

func (c *PCache) reportFailure(err error, args ...any) {
	c.failures.Add(1)
	slog.Error("cache failure", append(args, "error", err)...)
}

// New returns a new PCache.
//
// cleanUpTimeout is the timeout between automatic clean-up intervals. When set to 0 no cleanUp will be done.
// Make sure to close this object again to free all it's resources.
func New(st CacheStorage, cleanUpTimeout time.Duration) *PCache {
	c := &PCache{
		st:     st,
		closeC: make(chan struct{}),
	}
	if cleanUpTimeout > 0 {
		go func() {
			ticker := time.NewTicker(cleanUpTimeout)
			defer ticker.Stop()
			for {
				select {
				case <-c.closeC:
					slog.Debug("cache closed")
					return
				case <-ticker.C:
					c.CleanUp()
				}
			}
		}()
	}
	return c
}

// CleanUp removes all expired entries and returns how many were removed.
func (c *PCache) CleanUp() int {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	n, err := c.st.CacheCleanup(ctx)
	if err != nil {
		c.reportFailure(err)
		return 0
	}
	if n > 0 {
		slog.Debug("cache cleaned up", "removed", n)
	}
	return n
}

// Clear removes all entries.
func (c *PCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.st.CacheClear(ctx); err != nil {
		c.reportFailure(err)
	}
}

// Close closes the cache and frees allocated resources.
// It is safe to call Close more then once.
func (c *PCache) Close() {
	c.closeOnce.Do(func() {
		close(c.closeC)
	})
}

func (c *PCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.st.CacheDelete(ctx, key); err != nil {
		c.reportFailure(err, "key", key)
	}
}

func (c *PCache) Exists(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	found, err := c.st.CacheExists(ctx, key)
	if err != nil {
		c.reportFailure(err, "key", key)
	}
	return found
}

func (c *PCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	v, err := c.st.CacheGet(ctx, key)
	if errors.Is(err, app.ErrNotFound) {
		c.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.misses.Add(1)
		c.reportFailure(err, "key", key)
		return nil, false
	}
	c.hits.Add(1)
	return v, true
}

// Set stores a value under key. A zero timeout means the entry never expires.
func (c *PCache) Set(key string, value []byte, timeout time.Duration) {
	var expiresAt time.Time
	if timeout > 0 {
		expiresAt = time.Now().Add(timeout)
	}
	arg := storage.CacheSetParams{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.st.CacheSet(ctx, arg); err != nil {
		c.reportFailure(err, "key", key)
	}
}
