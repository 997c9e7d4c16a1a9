// Package engine assembles a module manager from configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skekre98/galaxy/actuator"
	"github.com/skekre98/galaxy/config"
	"github.com/skekre98/galaxy/core"
	"github.com/skekre98/galaxy/dynlib"
	"github.com/skekre98/galaxy/memory"
	"github.com/skekre98/galaxy/metrics"
	"github.com/skekre98/galaxy/resource"
	"github.com/skekre98/galaxy/scheduler"
	"github.com/skekre98/galaxy/script"
	"github.com/skekre98/galaxy/web"
)

var ErrUnknownBuiltin = errors.New("unknown builtin module type")

// Engine is a configured manager ready to run.
type Engine struct {
	Manager  *core.Manager
	App      *core.App
	Services *core.Services
	Registry *prometheus.Registry
}

type options struct {
	catalog Catalog
	loader  core.Loader
}

type Option func(*options)

// WithCatalog replaces the builtin catalog.
func WithCatalog(c Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithLoader replaces the native/script loader pair.
func WithLoader(l core.Loader) Option {
	return func(o *options) { o.loader = l }
}

// New registers every enabled module of cfg.Engine.Modules, or the
// default set when none are listed, and declares their dependencies.
// Builtins are built in dependency order so a builder can look up the
// modules it depends on. Modules are not initialized.
func New(cfg config.Root, logger *slog.Logger, opts ...Option) (*Engine, error) {
	o := options{
		catalog: DefaultCatalog(),
		loader:  Loaders(dynlib.NewLoader(logger), script.NewLoader(logger, script.WithCallTimeout(cfg.Engine.ScriptTimeout))),
	}
	for _, opt := range opts {
		opt(&o)
	}

	reg := metrics.NewRegistry()
	mopts := []core.Option{core.WithLogger(logger), core.WithLoader(o.loader)}
	if cfg.Observability.Metrics.Enabled {
		obs, err := metrics.New(reg, KnownEvents(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		mopts = append(mopts, core.WithObserver(obs))
	}
	mgr := core.NewManager(mopts...)

	s := core.NewServices()
	core.Provide(s, cfg)
	core.Provide(s, logger)
	core.Provide(s, mgr)
	core.Provide[prometheus.Gatherer](s, reg)

	specs := cfg.Engine.Modules
	if len(specs) == 0 {
		specs = DefaultModules(cfg)
	}
	ordered, err := buildOrder(specs)
	if err != nil {
		return nil, err
	}

	for _, spec := range ordered {
		if err := register(mgr, s, o.catalog, spec); err != nil {
			mgr.CleanupModules(context.Background())
			return nil, fmt.Errorf("module %q: %w", spec.Name, err)
		}
		logger.Debug("module registered", "module", spec.Name, "kind", spec.Kind)
	}
	for _, spec := range ordered {
		for _, dep := range spec.DependsOn {
			mgr.AddDependency(spec.Name, dep)
		}
	}

	app := core.NewApp(logger, mgr)
	app.UpdateInterval = cfg.Engine.UpdateInterval
	if cfg.Engine.ShutdownTimeout > 0 {
		app.ShutdownTimeout = cfg.Engine.ShutdownTimeout
	}
	return &Engine{Manager: mgr, App: app, Services: s, Registry: reg}, nil
}

func register(mgr *core.Manager, s *core.Services, catalog Catalog, spec config.ModuleSpec) error {
	switch spec.Kind {
	case config.KindBuiltin:
		build, ok := catalog[spec.Type]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownBuiltin, spec.Type)
		}
		mod, err := build(s, spec)
		if err != nil {
			return err
		}
		return mgr.RegisterModule(spec.Name, mod)
	case config.KindLibrary, config.KindScript:
		return mgr.LoadModuleFromFile(spec.Path, spec.Name)
	default:
		return fmt.Errorf("unknown module kind %q", spec.Kind)
	}
}

// buildOrder drops disabled modules and sorts the rest so every module
// comes after the listed modules it depends on. Dependencies on modules
// that are not listed are left for the manager to report.
func buildOrder(specs []config.ModuleSpec) ([]config.ModuleSpec, error) {
	g := core.NewGraph()
	byName := make(map[string]config.ModuleSpec, len(specs))
	var names []string
	for _, spec := range specs {
		if spec.Disabled {
			continue
		}
		byName[spec.Name] = spec
		names = append(names, spec.Name)
		for _, dep := range spec.DependsOn {
			g.Add(spec.Name, dep)
		}
	}
	sorted, err := g.Sort(names)
	if err != nil {
		return nil, err
	}
	out := make([]config.ModuleSpec, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, byName[n])
	}
	return out, nil
}

// DefaultModules is the module set used when the configuration lists
// none: the scheduler, memory and resource collaborators, plus the admin
// server when it is enabled.
func DefaultModules(cfg config.Root) []config.ModuleSpec {
	builtin := func(name string, deps ...string) config.ModuleSpec {
		return config.ModuleSpec{Name: name, Kind: config.KindBuiltin, Type: name, DependsOn: deps}
	}
	specs := []config.ModuleSpec{
		builtin(scheduler.Name),
		builtin(memory.Name),
		builtin(resource.Name, scheduler.Name),
	}
	if cfg.Server.Enabled {
		specs = append(specs, builtin(web.Name), builtin(actuator.Name, web.Name))
	}
	return specs
}

// KnownEvents lists the event names the metrics observer labels
// individually: those the builtin modules react to plus any configured.
func KnownEvents(cfg config.Root) []string {
	events := []string{
		scheduler.EventPause,
		scheduler.EventResume,
		memory.EventTrim,
		resource.EventFlush,
	}
	return append(events, cfg.Observability.Metrics.Events...)
}
