package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/bluele/gcache"
)

// Cached is a read-through ARC cache in front of another Store. Writes and
// deletes go to the backing store first; the cache is only updated once
// they succeed.
type Cached struct {
	backend Store
	cache   gcache.Cache

	// generations counts writes per app so a backend read that raced a
	// Save or Delete is not cached
	mu          sync.Mutex
	generations map[string]uint64
}

// NewCached wraps backend with an ARC cache holding up to size icons
func NewCached(backend Store, size int) *Cached {
	if size <= 0 {
		size = 1
	}
	return &Cached{
		backend:     backend,
		cache:       gcache.New(size).ARC().Build(),
		generations: make(map[string]uint64),
	}
}

// Load implements Store
func (c *Cached) Load(ctx context.Context, appID string) ([]byte, error) {
	if v, err := c.cache.GetIFPresent(appID); err == nil {
		return bytes.Clone(v.([]byte)), nil
	}

	gen := c.generation(appID)
	data, err := c.backend.Load(ctx, appID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generations[appID] == gen {
		_ = c.cache.Set(appID, bytes.Clone(data))
	}
	c.mu.Unlock()
	return data, nil
}

// Save implements Store
func (c *Cached) Save(ctx context.Context, appID string, data []byte) error {
	c.bump(appID)
	err := c.backend.Save(ctx, appID, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[appID]++
	if err != nil {
		// The backing file may or may not have changed
		c.cache.Remove(appID)
		return err
	}
	_ = c.cache.Set(appID, bytes.Clone(data))
	return nil
}

// Delete implements Store
func (c *Cached) Delete(ctx context.Context, appID string) error {
	c.bump(appID)
	err := c.backend.Delete(ctx, appID)
	c.bump(appID)
	return err
}

func (c *Cached) generation(appID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[appID]
}

// bump invalidates the cached entry and any backend read in flight
func (c *Cached) bump(appID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[appID]++
	c.cache.Remove(appID)
}

// HitRate returns the fraction of loads served from the cache
func (c *Cached) HitRate() float64 {
	return c.cache.HitRate()
}

// Len returns the number of cached icons
func (c *Cached) Len() int {
	return c.cache.Len(false)
}
