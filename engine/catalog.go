package engine

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skekre98/galaxy/actuator"
	"github.com/skekre98/galaxy/config"
	"github.com/skekre98/galaxy/core"
	"github.com/skekre98/galaxy/memory"
	"github.com/skekre98/galaxy/resource"
	"github.com/skekre98/galaxy/scheduler"
	"github.com/skekre98/galaxy/web"
)

// Builder constructs a builtin module. Collaborators come from s; a
// builder may provide its module for builders that run after it.
type Builder func(s *core.Services, spec config.ModuleSpec) (core.Module, error)

// Catalog maps builtin type names to builders.
type Catalog map[string]Builder

func DefaultCatalog() Catalog {
	return Catalog{
		scheduler.Name: buildScheduler,
		memory.Name:    buildMemory,
		resource.Name:  buildResources,
		web.Name:       buildWeb,
		actuator.Name:  buildActuator,
	}
}

func buildScheduler(s *core.Services, spec config.ModuleSpec) (core.Module, error) {
	cfg := core.MustLookup[config.Root](s)
	m := scheduler.New(scheduler.Config{
		Workers:   cfg.Scheduler.Workers,
		QueueSize: cfg.Scheduler.QueueSize,
	}, core.MustLookup[*slog.Logger](s))
	core.Provide(s, m)
	return m, nil
}

func buildMemory(s *core.Services, spec config.ModuleSpec) (core.Module, error) {
	cfg := core.MustLookup[config.Root](s)
	m := memory.New(memory.Config{
		BlockSizes:    cfg.Memory.BlockSizes,
		InitialBlocks: cfg.Memory.InitialBlocks,
		MaxAllocation: cfg.Memory.MaxAllocation,
	}, core.MustLookup[*slog.Logger](s))
	core.Provide(s, m)
	return m, nil
}

func buildResources(s *core.Services, spec config.ModuleSpec) (core.Module, error) {
	sched, err := core.Lookup[*scheduler.Module](s)
	if err != nil {
		return nil, fmt.Errorf("%s needs a %s module: %w", spec.Name, scheduler.Name, err)
	}
	cfg := core.MustLookup[config.Root](s)
	m := resource.New(resource.Config{MaxCached: cfg.Resources.MaxCached}, sched, core.MustLookup[*slog.Logger](s))
	core.Provide(s, m)
	return m, nil
}

func buildWeb(s *core.Services, spec config.ModuleSpec) (core.Module, error) {
	cfg := core.MustLookup[config.Root](s)
	m := web.New(web.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, core.MustLookup[*slog.Logger](s))
	core.Provide(s, m)
	return m, nil
}

func buildActuator(s *core.Services, spec config.ModuleSpec) (core.Module, error) {
	w, err := core.Lookup[*web.Module](s)
	if err != nil {
		return nil, fmt.Errorf("%s needs a %s module: %w", spec.Name, web.Name, err)
	}
	cfg := core.MustLookup[config.Root](s)
	ac := actuator.Config{
		BasePath:   cfg.Actuator.BasePath,
		AppName:    cfg.App.Name,
		AppVersion: cfg.App.Version,
	}
	if cfg.Observability.Metrics.Enabled {
		ac.Gatherer = core.MustLookup[prometheus.Gatherer](s)
	}
	m := actuator.New(ac, core.MustLookup[*core.Manager](s), w.Router(), core.MustLookup[*slog.Logger](s))
	core.Provide(s, m)
	return m, nil
}
