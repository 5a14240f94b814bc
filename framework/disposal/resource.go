// Package disposal provides the reusable teardown base for every owned
// resource in the framework: idempotent, thread-safe, synchronous and
// asynchronous release with a finalizer as a last resort when explicit
// disposal is skipped.
package disposal

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"go.uber.org/multierr"
)

// ErrDisposed is returned when an operation is attempted on a resource
// that has already been torn down. Owners gate their accessors with it:
//
//	if err := s.res.Guard(); err != nil {
//	    return nil, err
//	}
var ErrDisposed = errors.New("disposal: resource already disposed")

// Disposable is the minimal contract a provider-owned service can
// implement to take part in deterministic teardown.
type Disposable interface {
	Dispose() error
}

// DisposableContext is the context-aware variant for services whose
// teardown can block (connection draining, flushes).
type DisposableContext interface {
	DisposeContext(ctx context.Context) error
}

// Hook releases one class of resource. Hooks default to no-ops; owners
// install only the ones they need.
type Hook func() error

// HookContext is the context-aware form of Hook.
type HookContext func(ctx context.Context) error

// Option configures a Resource at construction time.
type Option func(*Resource)

// WithManaged installs the hook that releases managed resources
// (other Disposables owned by this one). It is skipped on the
// finalizer path, where those objects may already be unreachable.
func WithManaged(h Hook) Option {
	return func(r *Resource) { r.managed = h }
}

// WithUnmanaged installs the hook that releases unmanaged resources
// (file handles, sockets, OS-level state). It runs on every path,
// including the finalizer.
func WithUnmanaged(h Hook) Option {
	return func(r *Resource) { r.unmanaged = h }
}

// WithManagedContext installs the context-aware managed-release hook
// used by DisposeContext.
func WithManagedContext(h HookContext) Option {
	return func(r *Resource) { r.managedCtx = h }
}

// WithUnmanagedContext installs the context-aware unmanaged-release hook
// used by DisposeContext.
func WithUnmanagedContext(h HookContext) Option {
	return func(r *Resource) { r.unmanagedCtx = h }
}

// Resource is the embeddable teardown base. The zero value is NOT usable;
// construct with New so the finalizer fallback is registered.
//
// The teardown hooks execute at most once per instance, no matter how many
// times disposal is requested, from how many goroutines, or through which
// path (Dispose, DisposeContext, finalizer). Concurrent callers serialize
// on the internal mutex and exactly one of them performs the teardown.
type Resource struct {
	mu       sync.Mutex
	disposed bool

	managed      Hook
	unmanaged    Hook
	managedCtx   HookContext
	unmanagedCtx HookContext
}

// New constructs a Resource with the given hooks and arms the finalizer
// fallback. Explicit disposal disarms it.
func New(opts ...Option) *Resource {
	r := &Resource{}
	for _, opt := range opts {
		opt(r)
	}
	runtime.SetFinalizer(r, (*Resource).finalize)
	return r
}

// Dispose releases the resource synchronously. The managed hook runs
// first, then the unmanaged hook, both while holding the mutex. Calling
// Dispose on an already-disposed resource is a no-op returning nil.
func (r *Resource) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return nil
	}
	r.disposed = true
	runtime.SetFinalizer(r, nil)

	var err error
	if r.managed != nil {
		err = multierr.Append(err, r.managed())
	}
	if r.unmanaged != nil {
		err = multierr.Append(err, r.unmanaged())
	}
	return err
}

// DisposeContext releases the resource through the asynchronous path.
// The disposed flag is claimed under the mutex, but the hooks themselves
// run after it is released so a slow context-aware hook never blocks
// other operations waiting on the mutex.
//
// After the context-aware hooks, the synchronous unmanaged hook also
// runs: unmanaged resources are released even when an owner installed
// only the synchronous hook.
func (r *Resource) DisposeContext(ctx context.Context) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	r.disposed = true
	runtime.SetFinalizer(r, nil)
	r.mu.Unlock()

	var err error
	if r.managedCtx != nil {
		err = multierr.Append(err, r.managedCtx(ctx))
	} else if r.managed != nil {
		err = multierr.Append(err, r.managed())
	}
	if r.unmanagedCtx != nil {
		err = multierr.Append(err, r.unmanagedCtx(ctx))
	}
	if r.unmanaged != nil {
		err = multierr.Append(err, r.unmanaged())
	}
	return err
}

// Disposed reports whether teardown has been performed (or claimed by an
// in-flight DisposeContext).
func (r *Resource) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// Guard returns ErrDisposed when the resource has been torn down, nil
// otherwise. Owners call it at the top of every guarded accessor so a
// disposed instance fails loudly instead of serving stale state.
func (r *Resource) Guard() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return ErrDisposed
	}
	return nil
}

// finalize is the garbage-collector fallback for resources that were
// never explicitly disposed. Managed objects may already be unreachable
// at this point, so only the unmanaged hooks run.
func (r *Resource) finalize() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	r.mu.Unlock()

	if r.unmanagedCtx != nil {
		_ = r.unmanagedCtx(context.Background())
	}
	if r.unmanaged != nil {
		_ = r.unmanaged()
	}
}
