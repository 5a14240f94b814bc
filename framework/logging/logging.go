// Package logging bootstraps a logger factory from the "logging" section
// of the application settings, before the service container exists.
//
// Two bootstrappers satisfy the same contract: ConsoleBootstrapper, the
// plain baseline, and StructuredBootstrapper, an enriched multi-sink
// variant. Consumers never depend on which one produced their logger.
package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvete/ignition/framework/config"
	"github.com/calvete/ignition/framework/disposal"
)

// ErrUnknownLevel is returned when the configured log level does not
// name a known severity.
var ErrUnknownLevel = errors.New("logging: unknown level")

// Bootstrapper produces a logger factory from a configuration source.
// Implementations differ only in sink richness.
type Bootstrapper interface {
	// Settings returns the read-only configuration handle the
	// bootstrapper was built from.
	Settings() *config.Settings

	// Initialize builds a Factory configured from the "logging"
	// section. Calling Initialize on a disposed bootstrapper fails
	// with disposal.ErrDisposed.
	Initialize() (*Factory, error)
}

var (
	_ Bootstrapper = (*ConsoleBootstrapper)(nil)
	_ Bootstrapper = (*StructuredBootstrapper)(nil)
)

// Options is the parsed "logging" settings section.
type Options struct {
	// Level is the minimum severity: debug, info, warn, error.
	Level zapcore.Level

	// Outputs lists sink destinations (stdout, stderr, file paths).
	Outputs []string

	// Fields are static key/value pairs attached to every entry by the
	// structured variant.
	Fields map[string]string
}

// ParseOptions reads a "logging" section into Options. An absent section
// yields the defaults (info level, stderr).
func ParseOptions(section *config.Settings) (Options, error) {
	opts := Options{
		Level:   zapcore.InfoLevel,
		Outputs: []string{"stderr"},
	}

	raw := section.String("level", "info")
	level, err := zapcore.ParseLevel(raw)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %q", ErrUnknownLevel, raw)
	}
	opts.Level = level

	if outputs := section.StringSlice("outputs"); len(outputs) > 0 {
		opts.Outputs = outputs
	}
	opts.Fields = section.StringMap("fields")

	return opts, nil
}

// Factory hands out per-consumer loggers from one configured backend.
// It owns the backend's buffers: disposing the factory flushes them.
type Factory struct {
	res  *disposal.Resource
	base *zap.Logger
}

// NewFactory wraps an already-built zap logger. Bootstrappers call this;
// tests may call it directly with a zaptest or observer logger.
func NewFactory(base *zap.Logger) *Factory {
	f := &Factory{base: base}
	f.res = disposal.New(
		disposal.WithUnmanaged(func() error {
			// Sync flushes buffered sinks. Syncing stderr/stdout is
			// reported as an error on some platforms; that is noise,
			// not a teardown failure.
			_ = base.Sync()
			return nil
		}),
	)
	return f
}

// Named returns a logger for the given consumer name.
func (f *Factory) Named(name string) (*zap.Logger, error) {
	if err := f.res.Guard(); err != nil {
		return nil, err
	}
	return f.base.Named(name), nil
}

// Root returns the unnamed base logger.
func (f *Factory) Root() (*zap.Logger, error) {
	if err := f.res.Guard(); err != nil {
		return nil, err
	}
	return f.base, nil
}

// Dispose flushes the backend's buffers and tears the factory down.
// Further Named/Root calls fail with disposal.ErrDisposed.
func (f *Factory) Dispose() error {
	return f.res.Dispose()
}

// Disposed reports whether the factory has been torn down.
func (f *Factory) Disposed() bool {
	return f.res.Disposed()
}
