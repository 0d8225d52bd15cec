package resilience

import "sync"

// Group hands out one breaker per key, created lazily from shared settings.
// Icon fetches hit many unrelated sites; keying by host keeps one dead site
// from blocking the rest.
type Group struct {
	name     string
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup creates an empty breaker group
func NewGroup(name string, settings Settings) *Group {
	return &Group{
		name:     name,
		settings: settings,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[key]
	if !ok {
		b = New(g.name+":"+key, g.settings)
		g.breakers[key] = b
	}
	return b
}

// States returns a snapshot of every known breaker state by key
func (g *Group) States() map[string]State {
	g.mu.Lock()
	keys := make(map[string]*Breaker, len(g.breakers))
	for k, b := range g.breakers {
		keys[k] = b
	}
	g.mu.Unlock()

	states := make(map[string]State, len(keys))
	for k, b := range keys {
		states[k] = b.State()
	}
	return states
}

// Len returns the number of breakers created so far
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.breakers)
}
