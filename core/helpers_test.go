package core_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/skekre98/galaxy/core"
)

// journal records lifecycle calls across modules in the order they happen.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// filter keeps entries with the given prefix, stripped of it.
func (j *journal) filter(prefix string) []string {
	var out []string
	for _, e := range j.list() {
		if len(e) > len(prefix) && e[:len(prefix)] == prefix {
			out = append(out, e[len(prefix):])
		}
	}
	return out
}

type fakeModule struct {
	core.Lifecycle

	name string
	log  *journal

	initErr     error
	shutdownErr error
	eventErr    error
	panicOn     string

	mu        sync.Mutex
	inits     int
	shutdowns int
	updates   int
	events    []string
	tasks     []core.Task
}

func newFake(name string, log *journal) *fakeModule {
	return &fakeModule{name: name, log: log}
}

func (f *fakeModule) Initialize(ctx context.Context) error {
	if f.panicOn == "init" {
		panic("boom")
	}
	f.mu.Lock()
	f.inits++
	f.mu.Unlock()
	if f.initErr != nil {
		return f.initErr
	}
	if err := f.Begin(); err != nil {
		return nil
	}
	f.log.add("init:" + f.name)
	return nil
}

func (f *fakeModule) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	f.shutdowns++
	f.mu.Unlock()
	f.log.add("shutdown:" + f.name)
	_ = f.End()
	if f.panicOn == "shutdown" {
		panic("boom")
	}
	return f.shutdownErr
}

func (f *fakeModule) Update(ctx context.Context) error {
	if f.Check() != nil {
		return nil
	}
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
	return nil
}

func (f *fakeModule) OnEvent(ctx context.Context, event string) error {
	if f.panicOn == "event" {
		panic("boom")
	}
	if f.Check() != nil {
		return nil
	}
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	return f.eventErr
}

func (f *fakeModule) ProcessTask(ctx context.Context, task core.Task) error {
	if f.Check() != nil {
		return nil
	}
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
	return nil
}

func (f *fakeModule) counts() (inits, shutdowns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits, f.shutdowns
}

func (f *fakeModule) eventList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// fakeLibrary hands out a fixed factory result and records Close.
type fakeLibrary struct {
	path    string
	log     *journal
	noSym   bool
	module  core.Module
	factErr error

	closed int
}

func (l *fakeLibrary) Path() string { return l.path }

func (l *fakeLibrary) Factory(symbol string) (core.Factory, error) {
	if l.noSym || symbol != core.FactorySymbol {
		return nil, errors.New("undefined symbol: " + symbol)
	}
	return func() (core.Module, error) { return l.module, l.factErr }, nil
}

func (l *fakeLibrary) Close() error {
	l.closed++
	if l.log != nil {
		l.log.add("close:" + l.path)
	}
	return nil
}

func loaderFor(libs map[string]*fakeLibrary) core.Loader {
	return core.LoaderFunc(func(path string) (core.Library, error) {
		lib, ok := libs[path]
		if !ok {
			return nil, errors.New("cannot open shared object file")
		}
		return lib, nil
	})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(opts ...core.Option) *core.Manager {
	return core.NewManager(append([]core.Option{core.WithLogger(quietLogger())}, opts...)...)
}
