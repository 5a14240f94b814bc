package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvete/ignition/framework/config"
	"github.com/calvete/ignition/framework/disposal"
)

// ConsoleBootstrapper is the baseline logging bootstrapper: a single
// human-readable console sink on stderr, level taken from the "logging"
// settings section. Outputs and fields configuration are ignored here;
// use StructuredBootstrapper for multi-sink enriched logging.
type ConsoleBootstrapper struct {
	res       *disposal.Resource
	settings  *config.Settings
	factories []*Factory
}

// NewConsoleBootstrapper builds a console bootstrapper over the given
// settings handle.
func NewConsoleBootstrapper(settings *config.Settings) *ConsoleBootstrapper {
	b := &ConsoleBootstrapper{settings: settings}
	b.res = disposal.New(
		disposal.WithManaged(b.disposeFactories),
	)
	return b
}

// Settings returns the configuration handle this bootstrapper reads.
func (b *ConsoleBootstrapper) Settings() *config.Settings {
	return b.settings
}

// Initialize builds a console-backed Factory from the "logging" section.
func (b *ConsoleBootstrapper) Initialize() (*Factory, error) {
	if err := b.res.Guard(); err != nil {
		return nil, err
	}

	opts, err := ParseOptions(b.settings.Section("logging"))
	if err != nil {
		return nil, fmt.Errorf("logging: console bootstrap: %w", err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		opts.Level,
	)

	factory := NewFactory(zap.New(core))
	b.factories = append(b.factories, factory)
	return factory, nil
}

// Dispose flushes every factory this bootstrapper produced.
func (b *ConsoleBootstrapper) Dispose() error {
	return b.res.Dispose()
}

// Disposed reports whether the bootstrapper has been torn down.
func (b *ConsoleBootstrapper) Disposed() bool {
	return b.res.Disposed()
}

func (b *ConsoleBootstrapper) disposeFactories() error {
	var err error
	for _, f := range b.factories {
		if derr := f.Dispose(); derr != nil {
			err = derr
		}
	}
	b.factories = nil
	return err
}
