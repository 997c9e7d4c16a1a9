package dynlib

import (
	"log/slog"
	"sync"

	"github.com/skekre98/galaxy/core"
)

// Loader implements core.Loader for native shared libraries.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

func (l *Loader) Open(path string) (core.Library, error) {
	lib, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &moduleLibrary{lib: lib, logger: l.logger.With("library", path)}, nil
}

// moduleLibrary tracks the instances it produced so their destructors run
// before the library is unmapped.
type moduleLibrary struct {
	lib    Library
	logger *slog.Logger

	mu        sync.Mutex
	instances []*nativeModule
}

func (ml *moduleLibrary) Path() string { return ml.lib.Path() }

func (ml *moduleLibrary) Factory(symbol string) (core.Factory, error) {
	sym, err := ml.lib.FindSymbol(symbol)
	if err != nil {
		return nil, err
	}
	create := bindFactory(sym)
	return func() (core.Module, error) {
		self := create()
		if self == 0 {
			return nil, nil
		}
		mod, err := bindModule(self, ml.logger)
		if err != nil {
			return nil, err
		}
		ml.mu.Lock()
		ml.instances = append(ml.instances, mod)
		ml.mu.Unlock()
		return mod, nil
	}, nil
}

func (ml *moduleLibrary) Close() error {
	ml.mu.Lock()
	instances := ml.instances
	ml.instances = nil
	ml.mu.Unlock()

	for _, m := range instances {
		m.release()
	}
	return ml.lib.Close()
}
