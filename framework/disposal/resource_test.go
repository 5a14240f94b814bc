package disposal_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvete/ignition/framework/disposal"
)

// countingHooks builds a Resource whose hooks count their invocations.
type countingHooks struct {
	managed      atomic.Int32
	unmanaged    atomic.Int32
	managedCtx   atomic.Int32
	unmanagedCtx atomic.Int32
}

func (h *countingHooks) resource() *disposal.Resource {
	return disposal.New(
		disposal.WithManaged(func() error { h.managed.Add(1); return nil }),
		disposal.WithUnmanaged(func() error { h.unmanaged.Add(1); return nil }),
		disposal.WithManagedContext(func(context.Context) error { h.managedCtx.Add(1); return nil }),
		disposal.WithUnmanagedContext(func(context.Context) error { h.unmanagedCtx.Add(1); return nil }),
	)
}

func TestDispose_RunsHooksOnce(t *testing.T) {
	t.Parallel()

	h := &countingHooks{}
	r := h.resource()

	require.NoError(t, r.Dispose())
	require.NoError(t, r.Dispose())
	require.NoError(t, r.Dispose())

	assert.Equal(t, int32(1), h.managed.Load())
	assert.Equal(t, int32(1), h.unmanaged.Load())
	assert.Equal(t, int32(0), h.managedCtx.Load(), "sync path must not run context hooks")
	assert.True(t, r.Disposed())
}

func TestDisposeContext_RunsContextHooksAndSyncUnmanaged(t *testing.T) {
	t.Parallel()

	h := &countingHooks{}
	r := h.resource()

	require.NoError(t, r.DisposeContext(context.Background()))
	require.NoError(t, r.DisposeContext(context.Background()))

	assert.Equal(t, int32(1), h.managedCtx.Load())
	assert.Equal(t, int32(1), h.unmanagedCtx.Load())
	// The synchronous unmanaged hook runs too, so owners that only
	// installed the sync hook still release unmanaged resources.
	assert.Equal(t, int32(1), h.unmanaged.Load())
	assert.Equal(t, int32(0), h.managed.Load())
}

func TestDisposeContext_FallsBackToSyncManagedHook(t *testing.T) {
	t.Parallel()

	var managed atomic.Int32
	r := disposal.New(
		disposal.WithManaged(func() error { managed.Add(1); return nil }),
	)

	require.NoError(t, r.DisposeContext(context.Background()))
	assert.Equal(t, int32(1), managed.Load())
}

func TestDispose_MixedPaths_EachHookOnce(t *testing.T) {
	t.Parallel()

	h := &countingHooks{}
	r := h.resource()

	require.NoError(t, r.Dispose())
	require.NoError(t, r.DisposeContext(context.Background()))
	require.NoError(t, r.Dispose())

	total := h.managed.Load() + h.managedCtx.Load()
	assert.Equal(t, int32(1), total, "managed teardown ran more than once")
	assert.Equal(t, int32(1), h.unmanaged.Load())
	assert.Equal(t, int32(0), h.unmanagedCtx.Load())
}

func TestDispose_Concurrent_ExactlyOneTeardown(t *testing.T) {
	t.Parallel()

	h := &countingHooks{}
	r := h.resource()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				_ = r.Dispose()
			} else {
				_ = r.DisposeContext(context.Background())
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), h.managed.Load()+h.managedCtx.Load())
	assert.Equal(t, int32(1), h.unmanaged.Load())
	assert.LessOrEqual(t, h.unmanagedCtx.Load(), int32(1))
	assert.True(t, r.Disposed())
}

func TestDispose_PropagatesHookErrors(t *testing.T) {
	t.Parallel()

	errManaged := errors.New("managed boom")
	errUnmanaged := errors.New("unmanaged boom")
	r := disposal.New(
		disposal.WithManaged(func() error { return errManaged }),
		disposal.WithUnmanaged(func() error { return errUnmanaged }),
	)

	err := r.Dispose()
	require.Error(t, err)
	assert.ErrorIs(t, err, errManaged)
	assert.ErrorIs(t, err, errUnmanaged)

	// Second call is a no-op even after a failing first teardown.
	assert.NoError(t, r.Dispose())
}

func TestGuard_FailsAfterDisposal(t *testing.T) {
	t.Parallel()

	r := disposal.New()
	require.NoError(t, r.Guard())

	require.NoError(t, r.Dispose())
	assert.ErrorIs(t, r.Guard(), disposal.ErrDisposed)
}

func TestFinalizer_RunsUnmanagedHookOnly(t *testing.T) {
	released := make(chan struct{})
	var managed atomic.Int32

	// The resource must become unreachable, so it is created in a
	// scope that drops the only reference.
	func() {
		_ = disposal.New(
			disposal.WithManaged(func() error { managed.Add(1); return nil }),
			disposal.WithUnmanaged(func() error { close(released); return nil }),
		)
	}()

	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-released:
			assert.Equal(t, int32(0), managed.Load(),
				"finalizer must skip managed-resource cleanup")
			return
		case <-deadline:
			t.Fatal("unmanaged hook never ran via finalizer")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestFinalizer_SkippedAfterExplicitDisposal(t *testing.T) {
	var unmanaged atomic.Int32

	func() {
		r := disposal.New(
			disposal.WithUnmanaged(func() error { unmanaged.Add(1); return nil }),
		)
		_ = r.Dispose()
	}()

	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int32(1), unmanaged.Load(), "finalizer re-ran the teardown")
}
