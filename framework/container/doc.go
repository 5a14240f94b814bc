// Package container implements the staged service container lifecycle
// that bootstraps an application's dependency graph before its full
// runtime exists.
//
// # Overview
//
// Three pieces cooperate:
//
//   - Registry — the mutable, ordered collection of keyed service
//     registrations. Not resolvable by itself.
//   - Provider — an immutable, resolvable snapshot frozen from a
//     Registry at build time. Singleton results are cached; disposing
//     the provider tears down every cached singleton that implements
//     disposal.Disposable or io.Closer.
//   - ServiceContainer — the orchestrator. It owns the registry,
//     discovers Loader plugins and drives them through the fixed
//     pipeline.
//
// # Pipeline
//
//	sc, err := container.New(loggerFactory, settings)
//	// 1. discover  — instantiate registered loader constructors
//	// 2. add       — each loader contributes registrations
//	// 3. build     — freeze the registry into a provider snapshot
//	// 4. configure — each loader wires itself against the provider
//	err = sc.FindServiceLoaders().AddServices()
//	err = sc.BuildServiceProvider()
//	err = sc.ConfigureServices()
//
// Construction registers three baseline entries before any loader runs:
// "config" (the settings handle), "logging.factory" (the logger
// factory) and "logger" (a transient per-consumer logger binding).
//
// # Loaders
//
// A Loader is externally supplied code implementing the two-stage
// contract. In AddServices it may only mutate the registry; resolving
// belongs in ConfigureServices, which runs with a fully built provider:
//
//	type cacheLoader struct{}
//
//	func (l *cacheLoader) AddServices(reg *container.Registry) error {
//	    reg.Singleton("cache", func(p *container.Provider) (any, error) {
//	        cfg, err := container.Resolve[*config.Settings](p, "config")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return cache.New(cfg.Section("cache")), nil
//	    })
//	    return nil
//	}
//
//	func (l *cacheLoader) ConfigureServices(p *container.Provider) error {
//	    _, err := p.Resolve("cache") // warm it up
//	    return err
//	}
//
// Loaders enter the pipeline through the explicit constructor registry,
// usually from the plugin package's init():
//
//	func init() {
//	    container.RegisterLoader("cache", func() (container.Loader, error) {
//	        return &cacheLoader{}, nil
//	    })
//	}
//
// # Failure semantics
//
// Every stage failure is logged with the operation and loader name and
// then returned; the stage stops at the failing loader and whatever
// partial registrations exist remain. Zero discovered loaders and an
// empty registry at build time are warnings, never errors.
//
// # Snapshot semantics
//
// Registering into the registry after a build is allowed and inert: a
// built provider never observes later additions, and the next
// BuildServiceProvider call picks them up in a fresh snapshot.
package container
