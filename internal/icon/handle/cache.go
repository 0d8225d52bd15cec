package handle

import (
	"sort"
	"sync"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/monitoring"
)

// EventKind describes a cache change
type EventKind string

const (
	EventInstalled EventKind = "installed"
	EventEvicted   EventKind = "evicted"
)

// Event is delivered to the cache observer after a change is applied
type Event struct {
	Kind     EventKind `json:"kind"`
	AppID    string    `json:"app_id"`
	HandleID string    `json:"handle_id"`
}

// Observer receives cache events. It is called outside the cache lock and
// must not block.
type Observer func(Event)

// Options configures a Cache
type Options struct {
	Observer Observer
	Metrics  *monitoring.Metrics
}

// Cache maps application ids to their single live handle
type Cache struct {
	mu      sync.Mutex
	handles map[string]*Handle

	observer Observer
	metrics  *monitoring.Metrics
}

// New creates an empty cache
func New(opts Options) *Cache {
	return &Cache{
		handles:  make(map[string]*Handle),
		observer: opts.Observer,
		metrics:  opts.Metrics,
	}
}

// Install publishes a new handle for appID built from PNG data and revokes
// the handle it replaces. The revocation runs after the new handle is in
// the map.
func (c *Cache) Install(appID string, data []byte) *Handle {
	h := newHandle(appID, data)

	c.mu.Lock()
	old := c.handles[appID]
	c.handles[appID] = h
	live := len(c.handles)
	c.mu.Unlock()

	defer c.release(old)

	c.metrics.SetHandlesLive(live)
	c.notify(Event{Kind: EventInstalled, AppID: appID, HandleID: h.id})
	return h
}

// Get returns the live handle for appID
func (c *Cache) Get(appID string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[appID]
	return h, ok
}

// Evict removes and revokes the handle for appID. It reports whether one existed.
func (c *Cache) Evict(appID string) bool {
	c.mu.Lock()
	h, ok := c.handles[appID]
	delete(c.handles, appID)
	live := len(c.handles)
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.release(h)
	c.metrics.SetHandlesLive(live)
	c.notify(Event{Kind: EventEvicted, AppID: appID, HandleID: h.id})
	return true
}

// Purge evicts every handle and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()

	for appID, h := range handles {
		c.release(h)
		c.notify(Event{Kind: EventEvicted, AppID: appID, HandleID: h.id})
	}
	c.metrics.SetHandlesLive(0)
	return len(handles)
}

// Len returns the number of live handles
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// AppIDs returns the ids with a live handle, sorted
func (c *Cache) AppIDs() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.handles))
	for id := range c.handles {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	sort.Strings(ids)
	return ids
}

func (c *Cache) release(h *Handle) {
	if h != nil && h.revoke() {
		c.metrics.IncRevocations()
	}
}

func (c *Cache) notify(e Event) {
	if c.observer != nil {
		c.observer(e)
	}
}
