package container

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/calvete/ignition/framework/config"
	"github.com/calvete/ignition/framework/disposal"
	"github.com/calvete/ignition/framework/logging"
)

// Baseline keys registered by New before any loader runs.
const (
	// KeyConfig resolves to the *config.Settings handle.
	KeyConfig = "config"
	// KeyLoggerFactory resolves to the *logging.Factory.
	KeyLoggerFactory = "logging.factory"
	// KeyLogger resolves to a fresh *zap.Logger per resolution.
	KeyLogger = "logger"
)

var (
	// ErrNilLoggerFactory is returned by New when no logger factory is supplied.
	ErrNilLoggerFactory = errors.New("container: nil logger factory")
	// ErrNilSettings is returned by New when no settings handle is supplied.
	ErrNilSettings = errors.New("container: nil settings")
)

// ── ServiceContainer ──────────────────────────────────────────────────────────

// ServiceContainer orchestrates the bootstrap lifecycle: it owns the
// mutable registry, discovers loader plugins, drives them through the
// add and configure stages, and builds the immutable provider.
//
// The intended flow is the four-stage pipeline:
//
//	sc, err := container.New(factory, settings)
//	...
//	if err := sc.FindServiceLoaders().AddServices(); err != nil { ... }
//	if err := sc.BuildServiceProvider(); err != nil { ... }
//	if err := sc.ConfigureServices(); err != nil { ... }
//
// Stages may technically be invoked in any order; only the documented
// order is meaningful. ConfigureServices before a build runs against the
// empty placeholder provider, and BuildServiceProvider may be called
// again to produce a fresh snapshot from the registry's current state.
//
// Every operation holds the container's single mutex for its duration,
// so discovery, registration, build, configuration and disposal are
// mutually exclusive.
type ServiceContainer struct {
	res *disposal.Resource

	mu       sync.Mutex
	log      *zap.Logger
	settings *config.Settings
	factory  *logging.Factory

	loaders     []Loader
	loaderNames []string
	// drained marks how far into the process-wide constructor list
	// previous discovery passes have consumed.
	drained int

	registry *Registry
	provider *Provider
}

// New constructs a container, registers the baseline entries (settings,
// logger factory, per-consumer logger binding) and installs an empty
// placeholder provider. A missing input or a failing baseline
// registration is an initialization error: logged where a logger exists,
// then returned.
func New(factory *logging.Factory, settings *config.Settings) (*ServiceContainer, error) {
	if factory == nil {
		return nil, fmt.Errorf("container: initialize: %w", ErrNilLoggerFactory)
	}
	if settings == nil {
		log, lerr := factory.Named("container")
		if lerr == nil {
			log.Error("initialization failed", zap.Error(ErrNilSettings))
		}
		return nil, fmt.Errorf("container: initialize: %w", ErrNilSettings)
	}

	log, err := factory.Named("container")
	if err != nil {
		return nil, fmt.Errorf("container: initialize: %w", err)
	}

	c := &ServiceContainer{
		log:      log,
		settings: settings,
		factory:  factory,
		registry: NewRegistry(),
		provider: EmptyProvider(),
	}
	c.res = disposal.New(
		disposal.WithManaged(c.disposeProvider),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Instance(KeyConfig, settings)
	c.registry.Instance(KeyLoggerFactory, factory)
	c.registry.Register(KeyLogger, func(*Provider) (any, error) {
		return factory.Named("app")
	})

	log.Debug("container initialized",
		zap.Int("baseline", c.registry.Len()))
	return c, nil
}

// FindServiceLoaders instantiates every constructor registered with
// RegisterLoader that no previous pass of this container has consumed,
// appending the instances to the loader collection. A constructor that
// fails is skipped with a warning. Returns the container for chaining.
//
// Discovery order is whatever the constructor list yields; callers must
// not depend on loader invocation order for correctness.
func (c *ServiceContainer) FindServiceLoaders() *ServiceContainer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.res.Guard(); err != nil {
		c.log.Error("discovery on disposed container", zap.Error(err))
		return c
	}

	entries, next := registeredLoaders(c.drained)
	c.drained = next

	found := 0
	for _, e := range entries {
		loader, err := e.ctor()
		if err != nil {
			c.log.Warn("service loader constructor failed, skipping",
				zap.String("loader", e.name),
				zap.Error(err))
			continue
		}
		c.loaders = append(c.loaders, loader)
		c.loaderNames = append(c.loaderNames, e.name)
		found++
	}

	c.log.Info("service loader discovery complete",
		zap.Int("found", found),
		zap.Int("total", len(c.loaders)))
	return c
}

// AddServices invokes AddServices(registry) on every discovered loader
// in collection order. Loaders see each other's registrations through
// the shared registry. The first failure is logged and returned and the
// remaining loaders are not invoked; registrations made before the
// failure remain (no rollback). Zero loaders is a warning, not an error.
func (c *ServiceContainer) AddServices() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.res.Guard(); err != nil {
		c.log.Error("add services on disposed container", zap.Error(err))
		return err
	}

	if len(c.loaders) == 0 {
		c.log.Warn("no service loaders discovered, nothing to add")
		return nil
	}

	for i, loader := range c.loaders {
		if err := loader.AddServices(c.registry); err != nil {
			c.log.Error("service loader failed to add services",
				zap.String("operation", "AddServices"),
				zap.String("loader", c.loaderNames[i]),
				zap.Error(err))
			return fmt.Errorf("container: add services (%s): %w", c.loaderNames[i], err)
		}
	}

	c.log.Info("services added",
		zap.Int("loaders", len(c.loaders)),
		zap.Int("registrations", c.registry.Len()))
	return nil
}

// BuildServiceProvider freezes the registry's current contents into a
// fresh provider snapshot, replacing the previous one. Callable more
// than once; each call snapshots the registry at call time. An empty
// registry is a warning, not an error.
func (c *ServiceContainer) BuildServiceProvider() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.res.Guard(); err != nil {
		c.log.Error("build on disposed container", zap.Error(err))
		return err
	}

	if c.registry.Len() == 0 {
		c.log.Warn("building provider from an empty registry")
	}

	// The previous snapshot is replaced, not disposed: callers that hold
	// it keep a working provider, and rebuild-then-compare stays valid.
	// Only container disposal tears the current snapshot down.
	c.provider = Build(c.registry)

	c.log.Info("service provider built",
		zap.Int("registrations", c.provider.Len()))
	return nil
}

// ConfigureServices invokes ConfigureServices(provider) on every
// discovered loader in collection order, against whatever provider
// currently exists (the placeholder, if no build has happened). Same
// empty-collection and failure semantics as AddServices.
func (c *ServiceContainer) ConfigureServices() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.res.Guard(); err != nil {
		c.log.Error("configure services on disposed container", zap.Error(err))
		return err
	}

	if len(c.loaders) == 0 {
		c.log.Warn("no service loaders discovered, nothing to configure")
		return nil
	}

	for i, loader := range c.loaders {
		if err := loader.ConfigureServices(c.provider); err != nil {
			c.log.Error("service loader failed to configure services",
				zap.String("operation", "ConfigureServices"),
				zap.String("loader", c.loaderNames[i]),
				zap.Error(err))
			return fmt.Errorf("container: configure services (%s): %w", c.loaderNames[i], err)
		}
	}

	c.log.Info("services configured", zap.Int("loaders", len(c.loaders)))
	return nil
}

// Provider returns the currently built provider (the placeholder until
// the first build). Fails with disposal.ErrDisposed after teardown.
func (c *ServiceContainer) Provider() (*Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.res.Guard(); err != nil {
		return nil, err
	}
	return c.provider, nil
}

// Registry returns the mutable registry. Mutations after a build are
// inert until the next build. Fails with disposal.ErrDisposed after
// teardown.
func (c *ServiceContainer) Registry() (*Registry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.res.Guard(); err != nil {
		return nil, err
	}
	return c.registry, nil
}

// LoaderCount returns the number of discovered loaders.
func (c *ServiceContainer) LoaderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loaders)
}

// Dispose tears the container down, disposing the currently built
// provider as its managed resource. Idempotent and safe to call
// concurrently with the staged operations: it takes the container mutex
// first, like every stage, so the lock order is always mutex → resource.
func (c *ServiceContainer) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res.Dispose()
}

// Disposed reports whether the container has been torn down.
func (c *ServiceContainer) Disposed() bool {
	return c.res.Disposed()
}

// disposeProvider runs as the managed-release hook, with c.mu already
// held by Dispose.
func (c *ServiceContainer) disposeProvider() error {
	if c.provider == nil {
		return nil
	}
	return c.provider.Dispose()
}
