//go:build darwin || freebsd || linux

package dynlib

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

type unixLibrary struct {
	path string

	mu     sync.Mutex
	handle uintptr
}

func open(path string) (Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}
	return &unixLibrary{path: path, handle: h}, nil
}

func (l *unixLibrary) Path() string { return l.path }

func (l *unixLibrary) FindSymbol(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == 0 {
		return 0, ErrClosed
	}
	sym, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, fmt.Errorf("dlsym %s: %w", name, err)
	}
	return sym, nil
}

func (l *unixLibrary) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("dlclose %s: %w", l.path, err)
	}
	return nil
}
