package container

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/calvete/ignition/framework/disposal"
)

// ErrNotRegistered is returned when a key is resolved that the provider's
// registry snapshot never contained.
var ErrNotRegistered = errors.New("container: service not registered")

// ── Provider ──────────────────────────────────────────────────────────────────

// Provider is an immutable, resolvable snapshot of a registry. Once
// built, it never observes later registry mutations; rebuilding produces
// a fresh snapshot.
//
// Singleton values are cached on first resolution. Disposing the
// provider tears down every cached singleton that implements
// disposal.Disposable or io.Closer.
type Provider struct {
	res     *disposal.Resource
	entries map[string]*registration

	mu    sync.Mutex
	cache map[string]any
}

// Build freezes the registry's current contents into a new Provider.
func Build(reg *Registry) *Provider {
	entries := make(map[string]*registration)
	for _, e := range reg.snapshot() {
		entries[e.key] = e
	}
	return newProvider(entries)
}

// EmptyProvider returns a valid provider with no registrations. The
// service container installs one at construction time so it is never in
// an undefined state before the first real build.
func EmptyProvider() *Provider {
	return newProvider(make(map[string]*registration))
}

func newProvider(entries map[string]*registration) *Provider {
	p := &Provider{
		entries: entries,
		cache:   make(map[string]any),
	}
	p.res = disposal.New(
		disposal.WithManaged(p.disposeSingletons),
	)
	return p
}

// Resolve returns the service registered under key, building it via its
// factory if needed. Singleton results are cached. Resolving from a
// disposed provider fails with disposal.ErrDisposed.
func (p *Provider) Resolve(key string) (any, error) {
	if err := p.res.Guard(); err != nil {
		return nil, err
	}

	reg, ok := p.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, key)
	}

	if reg.singleton {
		p.mu.Lock()
		if v, hit := p.cache[key]; hit {
			p.mu.Unlock()
			return v, nil
		}
		p.mu.Unlock()
	}

	// The factory runs outside the cache lock so it can resolve its own
	// dependencies through this provider.
	v, err := reg.factory(p)
	if err != nil {
		return nil, fmt.Errorf("container: building %q: %w", key, err)
	}

	if reg.singleton {
		p.mu.Lock()
		if prior, hit := p.cache[key]; hit {
			// A concurrent resolution won the race; keep its value.
			v = prior
		} else {
			p.cache[key] = v
		}
		p.mu.Unlock()
	}
	return v, nil
}

// Has reports whether key exists in this snapshot.
func (p *Provider) Has(key string) bool {
	_, ok := p.entries[key]
	return ok
}

// Keys returns the snapshot's keys. Order is unspecified.
func (p *Provider) Keys() []string {
	out := make([]string, 0, len(p.entries))
	for k := range p.entries {
		out = append(out, k)
	}
	return out
}

// Len returns the number of registrations in this snapshot.
func (p *Provider) Len() int {
	return len(p.entries)
}

// Dispose tears down the provider and every cached singleton that knows
// how to be torn down. Idempotent.
func (p *Provider) Dispose() error {
	return p.res.Dispose()
}

// Disposed reports whether the provider has been torn down.
func (p *Provider) Disposed() bool {
	return p.res.Disposed()
}

func (p *Provider) disposeSingletons() error {
	p.mu.Lock()
	cached := make([]any, 0, len(p.cache))
	for _, v := range p.cache {
		cached = append(cached, v)
	}
	p.cache = make(map[string]any)
	p.mu.Unlock()

	var err error
	for _, v := range cached {
		switch svc := v.(type) {
		case disposal.Disposable:
			err = multierr.Append(err, svc.Dispose())
		case io.Closer:
			err = multierr.Append(err, svc.Close())
		}
	}
	return err
}

// ── Generics helpers ──────────────────────────────────────────────────────────

// Resolve resolves key from p and type-asserts the result.
//
//	cfg, err := container.Resolve[*config.Settings](p, "config")
func Resolve[T any](p *Provider, key string) (T, error) {
	var zero T
	v, err := p.Resolve(key)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("container: %q resolved to %T, want %T", key, v, zero)
	}
	return typed, nil
}

// MustResolve is Resolve for wiring code where a miss is a programming
// error; it panics instead of returning one.
func MustResolve[T any](p *Provider, key string) T {
	v, err := Resolve[T](p, key)
	if err != nil {
		panic(err)
	}
	return v
}
