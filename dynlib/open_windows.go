//go:build windows

package dynlib

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

type windowsLibrary struct {
	path string

	mu     sync.Mutex
	handle windows.Handle
}

func open(path string) (Library, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("LoadLibrary %s: %w", path, err)
	}
	return &windowsLibrary{path: path, handle: h}, nil
}

func (l *windowsLibrary) Path() string { return l.path }

func (l *windowsLibrary) FindSymbol(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == 0 {
		return 0, ErrClosed
	}
	sym, err := windows.GetProcAddress(l.handle, name)
	if err != nil {
		return 0, fmt.Errorf("GetProcAddress %s: %w", name, err)
	}
	return sym, nil
}

func (l *windowsLibrary) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == 0 {
		return nil
	}
	err := windows.FreeLibrary(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("FreeLibrary %s: %w", l.path, err)
	}
	return nil
}
