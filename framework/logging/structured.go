package logging

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvete/ignition/framework/config"
	"github.com/calvete/ignition/framework/disposal"
)

// StructuredBootstrapper is the enriched logging bootstrapper: JSON
// encoding, one core per configured output sink, and static fields
// attached to every entry. Beyond the configured fields it stamps the
// application name, the process id, and a per-bootstrapper instance id
// so entries from different processes can be told apart downstream.
//
// It satisfies the same Bootstrapper contract as ConsoleBootstrapper;
// callers choose a variant once at startup and never look back.
type StructuredBootstrapper struct {
	res       *disposal.Resource
	settings  *config.Settings
	appName   string
	instance  string
	factories []*Factory
	closers   []func() error
}

// NewStructuredBootstrapper builds a structured bootstrapper over the
// given settings handle. appName tags every log entry.
func NewStructuredBootstrapper(settings *config.Settings, appName string) *StructuredBootstrapper {
	b := &StructuredBootstrapper{
		settings: settings,
		appName:  appName,
		instance: uuid.NewString(),
	}
	b.res = disposal.New(
		disposal.WithManaged(b.disposeFactories),
		disposal.WithUnmanaged(b.closeSinks),
	)
	return b
}

// Settings returns the configuration handle this bootstrapper reads.
func (b *StructuredBootstrapper) Settings() *config.Settings {
	return b.settings
}

// Instance returns the per-bootstrapper id stamped on every entry.
func (b *StructuredBootstrapper) Instance() string {
	return b.instance
}

// Initialize builds a multi-sink JSON Factory from the "logging" section.
func (b *StructuredBootstrapper) Initialize() (*Factory, error) {
	if err := b.res.Guard(); err != nil {
		return nil, err
	}

	opts, err := ParseOptions(b.settings.Section("logging"))
	if err != nil {
		return nil, fmt.Errorf("logging: structured bootstrap: %w", err)
	}

	sink, closeSink, err := zap.Open(opts.Outputs...)
	if err != nil {
		return nil, fmt.Errorf("logging: structured bootstrap: opening sinks %v: %w", opts.Outputs, err)
	}
	b.closers = append(b.closers, wrapCloser(closeSink))

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		sink,
		opts.Level,
	)

	fields := []zap.Field{
		zap.String("app", b.appName),
		zap.Int("pid", os.Getpid()),
		zap.String("instance", b.instance),
	}
	for k, v := range opts.Fields {
		fields = append(fields, zap.String(k, v))
	}

	factory := NewFactory(zap.New(core).With(fields...))
	b.factories = append(b.factories, factory)
	return factory, nil
}

// Dispose flushes every produced factory and closes the opened sinks.
func (b *StructuredBootstrapper) Dispose() error {
	return b.res.Dispose()
}

// Disposed reports whether the bootstrapper has been torn down.
func (b *StructuredBootstrapper) Disposed() bool {
	return b.res.Disposed()
}

func (b *StructuredBootstrapper) disposeFactories() error {
	var err error
	for _, f := range b.factories {
		if derr := f.Dispose(); derr != nil {
			err = derr
		}
	}
	b.factories = nil
	return err
}

func (b *StructuredBootstrapper) closeSinks() error {
	for _, closeFn := range b.closers {
		_ = closeFn()
	}
	b.closers = nil
	return nil
}

func wrapCloser(fn func()) func() error {
	return func() error {
		fn()
		return nil
	}
}
