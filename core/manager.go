package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"
)

// ModuleInfo is a point-in-time view of one registry entry.
type ModuleInfo struct {
	Name      string   `json:"name"`
	State     State    `json:"state"`
	DependsOn []string `json:"dependsOn"`
	Library   string   `json:"library,omitempty"`
}

type entry struct {
	module  Module
	state   State
	library Library // nil unless loaded by LoadModuleFromFile
}

// Manager owns registered modules and their dependency graph. It
// initializes modules in dependency order, shuts them down in reverse
// order, broadcasts events and owns the libraries dynamically loaded
// modules came from.
//
// Every exported method holds a single mutex for its whole duration, so
// module callbacks must not call back into the manager that invoked them.
type Manager struct {
	mu      sync.Mutex
	modules map[string]*entry
	order   []string // registration order
	graph   *Graph
	// detached holds libraries whose module was unregistered but not
	// unloaded, keyed by the name the module was registered under.
	detached map[string][]Library

	loader   Loader
	logger   *slog.Logger
	observer Observer
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithLoader sets the loader used by LoadModuleFromFile.
func WithLoader(l Loader) Option {
	return func(m *Manager) { m.loader = l }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		modules:  make(map[string]*entry),
		graph:    NewGraph(),
		detached: make(map[string][]Library),
		logger:   slog.Default(),
		observer: NopObserver{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// RegisterModule takes ownership of mod under name. The module starts
// Uninitialized.
func (m *Manager) RegisterModule(name string, mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.register(name, mod)
	return err
}

func (m *Manager) register(name string, mod Module) (*entry, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidModule)
	}
	if mod == nil {
		return nil, fmt.Errorf("%w: %q is nil", ErrInvalidModule, name)
	}
	if _, dup := m.modules[name]; dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateModule, name)
	}
	e := &entry{module: mod}
	m.modules[name] = e
	m.order = append(m.order, name)
	m.setState(name, e, StateUninitialized)
	m.logger.Debug("module registered", "module", name)
	return e, nil
}

// UnregisterModule shuts down name if it is initialized and removes it.
// A shutdown failure is logged and removal proceeds. Unknown names are a
// logged no-op; the result reports whether a module was removed.
//
// A library the module was loaded from stays open until UnloadModule(name)
// or CleanupModules, because the caller may still hold the instance.
func (m *Manager) UnregisterModule(ctx context.Context, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.unregister(ctx, name)
	if e == nil {
		return false
	}
	if e.library != nil {
		m.detached[name] = append(m.detached[name], e.library)
	}
	return true
}

// unregister returns the removed entry, or nil when name is unknown.
func (m *Manager) unregister(ctx context.Context, name string) *entry {
	e, ok := m.modules[name]
	if !ok {
		m.logger.Warn("unregister of unknown module ignored", "module", name)
		return nil
	}
	if e.state == StateInitialized {
		m.shutdown(ctx, name, e)
	}
	delete(m.modules, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	m.observer.ModuleRemoved(name)
	m.logger.Debug("module unregistered", "module", name)
	return e
}

// AddDependency declares that module must initialize after dependency.
// Neither name has to be registered yet.
func (m *Manager) AddDependency(module, dependency string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.Add(module, dependency)
}

func (m *Manager) RemoveDependency(module, dependency string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.Remove(module, dependency)
}

// InitializeModules initializes every registered module after its
// dependencies.
//
// An unregistered dependency or a cycle fails before any module is
// touched. Otherwise the first module failure stops the pass and is
// returned as an *InitError; modules initialized before it stay
// initialized. Calling it again skips initialized modules.
func (m *Manager) InitializeModules(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := slices.Clone(m.order)
	if missing := m.graph.Unresolved(names); len(missing) > 0 {
		return fmt.Errorf("%w: %q depends on %q", ErrUnknownModule, missing[0].Module, missing[0].Dependency)
	}
	order, err := m.graph.Sort(names)
	if err != nil {
		m.logger.Error("module initialization aborted", "error", err)
		return err
	}

	// Failed modules are not retried. Their dependents fail in turn and a
	// pass that otherwise succeeds still reports the first of them.
	var failed string
	for _, name := range order {
		if m.modules[name].state == StateFailed {
			if failed == "" {
				failed = name
			}
			continue
		}
		if err := m.initialize(ctx, name, nil); err != nil {
			return err
		}
	}
	if failed != "" {
		return &InitError{Module: failed, Initialized: m.initializedNames(), Err: ErrFailedEarlier}
	}
	return nil
}

// initialize runs with the lock held; path is the chain of modules
// currently initializing on this call stack.
func (m *Manager) initialize(ctx context.Context, name string, path []string) error {
	e, ok := m.modules[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}

	switch e.state {
	case StateInitialized:
		return nil
	case StateInitializing:
		return cycleFrom(path, name)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.setState(name, e, StateInitializing)
	path = append(path, name)
	for _, dep := range m.graph.edges[name] {
		if d := m.modules[dep]; d != nil && d.state == StateFailed {
			m.setState(name, e, StateUninitialized)
			return &InitError{
				Module:      name,
				Initialized: m.initializedNames(),
				Err:         fmt.Errorf("%w: %q", ErrDependencyFailed, dep),
			}
		}
		if err := m.initialize(ctx, dep, path); err != nil {
			m.setState(name, e, StateUninitialized)
			return err
		}
	}

	m.logger.Info("initializing module", "module", name)
	start := time.Now()
	if err := guard(func() error { return e.module.Initialize(ctx) }); err != nil {
		m.setState(name, e, StateFailed)
		m.logger.Error("module initialization failed", "module", name, "error", err)
		return &InitError{Module: name, Initialized: m.initializedNames(), Err: err}
	}
	m.setState(name, e, StateInitialized)
	m.observer.Initialized(name, time.Since(start))
	return nil
}

// CleanupModules shuts down initialized modules in reverse dependency
// order, clears the registry and releases every loaded library. Module
// failures are logged and never stop the pass.
func (m *Manager) CleanupModules(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup(ctx)
}

// Close is CleanupModules; it lets a Manager be deferred as a closer.
func (m *Manager) Close(ctx context.Context) {
	m.CleanupModules(ctx)
}

func (m *Manager) cleanup(ctx context.Context) {
	order, err := m.graph.Sort(m.order)
	if err != nil {
		m.logger.Warn("dependency cycle during cleanup, using registration order", "error", err)
		order = slices.Clone(m.order)
	}

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if e := m.modules[name]; e.state == StateInitialized {
			m.shutdown(ctx, name, e)
		}
	}

	var libs []Library
	for _, name := range m.order {
		if e := m.modules[name]; e.library != nil {
			libs = append(libs, e.library)
		}
		m.observer.ModuleRemoved(name)
	}
	m.modules = make(map[string]*entry)
	m.order = nil
	for _, lib := range libs {
		m.closeLibrary(lib)
	}
	m.releaseDetached()
}

// shutdown never fails: errors are logged and the state still returns to
// Uninitialized so a stuck module cannot block later passes.
func (m *Manager) shutdown(ctx context.Context, name string, e *entry) {
	m.logger.Info("shutting down module", "module", name)
	if err := guard(func() error { return e.module.Shutdown(ctx) }); err != nil {
		m.logger.Error("module shutdown failed", "module", name, "error", err)
	}
	m.setState(name, e, StateUninitialized)
}

// OnEvent delivers event to every initialized module in registration
// order and returns how many handled it without error.
func (m *Manager) OnEvent(ctx context.Context, event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	delivered, failed := m.broadcast("event", func(mod Module) error {
		return mod.OnEvent(ctx, event)
	})
	m.observer.EventDispatched(event, delivered, failed)
	return delivered
}

// Update ticks every initialized module once and returns how many
// updated without error.
func (m *Manager) Update(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated, _ := m.broadcast("update", func(mod Module) error {
		return mod.Update(ctx)
	})
	return updated
}

func (m *Manager) broadcast(op string, fn func(Module) error) (ok, failed int) {
	for _, name := range m.order {
		e := m.modules[name]
		if e.state != StateInitialized {
			continue
		}
		if err := guard(func() error { return fn(e.module) }); err != nil {
			failed++
			m.logger.Warn("module "+op+" failed", "module", name, "error", err)
			continue
		}
		ok++
	}
	return ok, failed
}

// ProcessTask hands task to the named module, which must be initialized.
func (m *Manager) ProcessTask(ctx context.Context, name string, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.modules[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	if e.state != StateInitialized {
		return fmt.Errorf("%w: %q is %s", ErrNotInitialized, name, e.state)
	}
	err := guard(func() error { return e.module.ProcessTask(ctx, task) })
	m.observer.TaskProcessed(name, task.Kind(), err)
	if err != nil {
		return fmt.Errorf("module %q task %s: %w", name, task.ID(), err)
	}
	return nil
}

// LoadModuleFromFile opens the library at path, builds a module through
// its CreateModule factory and registers it as name. The library is
// closed on every failure, so nothing is partially registered.
func (m *Manager) LoadModuleFromFile(path, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.modules[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, name)
	}
	if m.loader == nil {
		return &LoadError{Path: path, Kind: ErrLibraryLoad, Err: errors.New("no loader configured")}
	}

	lib, err := m.loader.Open(path)
	if err != nil {
		return &LoadError{Path: path, Kind: ErrLibraryLoad, Err: err}
	}

	var e *entry
	mod, err := instantiate(path, lib)
	if err == nil {
		e, err = m.register(name, mod)
	}
	if err != nil {
		m.closeLibrary(lib)
		return err
	}
	e.library = lib
	m.logger.Info("module loaded", "module", name, "path", path)
	return nil
}

func instantiate(path string, lib Library) (Module, error) {
	factory, err := lib.Factory(FactorySymbol)
	if err != nil {
		return nil, &LoadError{Path: path, Symbol: FactorySymbol, Kind: ErrSymbolNotFound, Err: err}
	}
	var mod Module
	err = guard(func() error {
		var ferr error
		mod, ferr = factory()
		return ferr
	})
	if err != nil {
		return nil, &LoadError{Path: path, Symbol: FactorySymbol, Kind: ErrLibraryLoad, Err: err}
	}
	if mod == nil {
		return nil, &LoadError{Path: path, Symbol: FactorySymbol, Kind: ErrFactoryReturnedNull}
	}
	return mod, nil
}

// UnloadModule unregisters name (running Shutdown when needed) and only
// then releases the library the module came from. When name is no longer
// registered, libraries left behind by UnregisterModule under that name
// are released instead. Calling it again is a no-op. The result reports
// whether anything was removed or released.
func (m *Manager) UnloadModule(ctx context.Context, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.unregister(ctx, name); e != nil {
		if e.library != nil {
			m.closeLibrary(e.library)
		}
		return true
	}
	libs := m.detached[name]
	delete(m.detached, name)
	for _, lib := range libs {
		m.closeLibrary(lib)
	}
	return len(libs) > 0
}

func (m *Manager) releaseDetached() {
	names := make([]string, 0, len(m.detached))
	for n := range m.detached {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		for _, lib := range m.detached[n] {
			m.closeLibrary(lib)
		}
	}
	m.detached = make(map[string][]Library)
}

func (m *Manager) closeLibrary(lib Library) {
	if err := lib.Close(); err != nil {
		m.logger.Error("library close failed", "path", lib.Path(), "error", err)
		return
	}
	m.logger.Debug("library released", "path", lib.Path())
}

// State returns the lifecycle state of name.
func (m *Manager) State(name string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.modules[name]
	if !ok {
		return StateUninitialized, false
	}
	return e.state, true
}

// Module returns the registered instance for name.
func (m *Manager) Module(name string) (Module, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.modules[name]
	if !ok {
		return nil, false
	}
	return e.module, true
}

// Modules lists the registry in registration order.
func (m *Manager) Modules() []ModuleInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ModuleInfo, 0, len(m.order))
	for _, name := range m.order {
		e := m.modules[name]
		info := ModuleInfo{
			Name:      name,
			State:     e.state,
			DependsOn: m.graph.Dependencies(name),
		}
		if e.library != nil {
			info.Library = e.library.Path()
		}
		out = append(out, info)
	}
	return out
}

// Initialized lists initialized modules in registration order.
func (m *Manager) Initialized() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializedNames()
}

func (m *Manager) initializedNames() []string {
	var out []string
	for _, name := range m.order {
		if m.modules[name].state == StateInitialized {
			out = append(out, name)
		}
	}
	return out
}

func (m *Manager) setState(name string, e *entry, s State) {
	e.state = s
	m.observer.StateChanged(name, s)
}

// guard turns a panic in module code into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrModulePanic, r)
		}
	}()
	return fn()
}
