package container

import "sync"

// ── Loader contract ───────────────────────────────────────────────────────────

// Loader is the plugin contract. A loader knows how to contribute
// service registrations to a not-yet-built registry and how to perform
// post-build configuration against a live provider.
//
// AddServices is intended to run once per container lifecycle; the
// container does not deduplicate, so loaders should either be idempotent
// or expect a single invocation.
type Loader interface {
	// AddServices mutates the registry by adding registrations.
	// Loaders run in discovery order, so later loaders observe earlier
	// loaders' additions.
	AddServices(reg *Registry) error

	// ConfigureServices performs setup that needs to resolve other
	// services. It runs strictly after the provider has been built in
	// the intended flow.
	ConfigureServices(p *Provider) error
}

// Constructor produces a Loader instance during discovery. A failing
// constructor is skipped with a warning, never fatal.
type Constructor func() (Loader, error)

// ── Loader registry ───────────────────────────────────────────────────────────

// The discovery source is an explicit, process-wide list of named
// constructors rather than any runtime type scanning. Plugin packages
// register themselves from init():
//
//	func init() {
//	    container.RegisterLoader("metrics", func() (container.Loader, error) {
//	        return &metricsLoader{}, nil
//	    })
//	}
//
// Within one run the list preserves append order, but the relative order
// of init()-time registrations across packages is a build artifact.
// Loaders must not depend on their position for correctness.

type loaderEntry struct {
	name string
	ctor Constructor
}

var (
	loaderMu      sync.Mutex
	loaderEntries []loaderEntry
)

// RegisterLoader appends a named loader constructor to the process-wide
// discovery list. Typically called from a plugin package's init().
func RegisterLoader(name string, ctor Constructor) {
	if ctor == nil {
		return
	}
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaderEntries = append(loaderEntries, loaderEntry{name: name, ctor: ctor})
}

// registeredLoaders returns the entries appended at or after offset.
// FindServiceLoaders uses the offset so repeated discovery only picks up
// constructors registered since the previous pass.
func registeredLoaders(offset int) ([]loaderEntry, int) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	if offset > len(loaderEntries) {
		offset = len(loaderEntries)
	}
	out := make([]loaderEntry, len(loaderEntries)-offset)
	copy(out, loaderEntries[offset:])
	return out, len(loaderEntries)
}

// resetLoaders clears the process-wide list. Tests only.
func resetLoaders() {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaderEntries = nil
}
