package container

import "sync"

// ── Registration types ────────────────────────────────────────────────────────

// Factory builds a concrete service value. It receives the provider so
// it can resolve the services it depends on.
type Factory func(p *Provider) (any, error)

// registration holds one keyed factory and its caching behaviour.
type registration struct {
	key       string
	factory   Factory
	singleton bool
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry is the mutable, ordered collection of service registrations.
// It is not resolvable; Build freezes its current contents into a
// Provider snapshot. Registering after a build is allowed and inert:
// the addition only becomes visible to the next snapshot.
//
//	reg := container.NewRegistry()
//	reg.Singleton("cache", func(p *container.Provider) (any, error) {
//	    cfg, err := container.Resolve[*config.Settings](p, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.New(cfg.Section("cache")), nil
//	})
type Registry struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register adds a transient factory: a new value is built on every
// resolution. The last registration for a key wins.
func (r *Registry) Register(key string, factory Factory) {
	r.add(&registration{key: key, factory: factory})
}

// Singleton adds a factory whose result is cached by the provider after
// the first resolution.
func (r *Registry) Singleton(key string, factory Factory) {
	r.add(&registration{key: key, factory: factory, singleton: true})
}

// Instance registers a pre-built value as a singleton.
func (r *Registry) Instance(key string, value any) {
	r.add(&registration{
		key:       key,
		factory:   func(*Provider) (any, error) { return value, nil },
		singleton: true,
	})
}

// Len returns the number of distinct keys registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) add(reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[reg.key]; !exists {
		r.order = append(r.order, reg.key)
	}
	r.entries[reg.key] = reg
}

// snapshot copies the current registrations in order, for Build.
func (r *Registry) snapshot() []*registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*registration, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entries[key])
	}
	return out
}
