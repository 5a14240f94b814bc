package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/calvete/ignition/framework/config"
	"github.com/calvete/ignition/framework/container"
	"github.com/calvete/ignition/framework/logging"
)

// Demo application: two loaders contribute services, the container
// drives them through the four-stage pipeline, and the resulting
// provider serves an HTTP API.

func init() {
	container.RegisterLoader("greeter", func() (container.Loader, error) {
		return &greeterLoader{}, nil
	})
	container.RegisterLoader("http", func() (container.Loader, error) {
		return &httpLoader{}, nil
	})
}

// ── greeterLoader ─────────────────────────────────────────────────────────────

// Greeter is the demo domain service.
type Greeter struct {
	template string
}

func (g *Greeter) Greet(name string) string {
	return fmt.Sprintf(g.template, name)
}

type greeterLoader struct{}

func (l *greeterLoader) AddServices(reg *container.Registry) error {
	reg.Singleton("greeter", func(p *container.Provider) (any, error) {
		cfg, err := container.Resolve[*config.Settings](p, container.KeyConfig)
		if err != nil {
			return nil, err
		}
		template := cfg.Section("app").String("greeting", "Hello, %s!")
		return &Greeter{template: template}, nil
	})
	return nil
}

func (l *greeterLoader) ConfigureServices(*container.Provider) error {
	return nil
}

// ── httpLoader ────────────────────────────────────────────────────────────────

// httpLoader registers the router in the add stage and wires routes in
// the configure stage, where resolving the greeter is safe.
type httpLoader struct{}

func (l *httpLoader) AddServices(reg *container.Registry) error {
	reg.Singleton("router", func(*container.Provider) (any, error) {
		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		return r, nil
	})
	return nil
}

func (l *httpLoader) ConfigureServices(p *container.Provider) error {
	router, err := container.Resolve[*chi.Mux](p, "router")
	if err != nil {
		return err
	}
	greeter, err := container.Resolve[*Greeter](p, "greeter")
	if err != nil {
		return err
	}
	log, err := container.Resolve[*zap.Logger](p, container.KeyLogger)
	if err != nil {
		return err
	}

	router.Get("/greet/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		log.Info("greeting requested", zap.String("name", name))
		fmt.Fprintln(w, greeter.Greet(name))
	})
	return nil
}

// ── bootstrap ─────────────────────────────────────────────────────────────────

func main() {
	settings, err := config.Load("settings.yaml", ".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bootstrapper := logging.NewStructuredBootstrapper(settings, "ignition-demo")
	defer bootstrapper.Dispose()

	factory, err := bootstrapper.Initialize()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sc, err := container.New(factory, settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer sc.Dispose()

	if err := sc.FindServiceLoaders().AddServices(); err != nil {
		os.Exit(1)
	}
	if err := sc.BuildServiceProvider(); err != nil {
		os.Exit(1)
	}
	if err := sc.ConfigureServices(); err != nil {
		os.Exit(1)
	}

	provider, err := sc.Provider()
	if err != nil {
		os.Exit(1)
	}

	log := container.MustResolve[*zap.Logger](provider, container.KeyLogger)
	router := container.MustResolve[*chi.Mux](provider, "router")

	addr := ":" + settings.Section("server").String("port", "8000")
	log.Info("serving", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
