// Package dynlib opens native shared libraries and adapts the modules
// they export through CreateModule to core.Module.
//
// A loadable library exports, with C linkage:
//
//	typedef struct galaxy_module_vtable {
//	    int32_t (*initialize)(void *self);
//	    int32_t (*shutdown)(void *self);
//	    int32_t (*update)(void *self);
//	    int32_t (*on_event)(void *self, const char *event);
//	    int32_t (*process_task)(void *self, int32_t kind, const uint8_t *payload, size_t len);
//	    void    (*destroy)(void *self);
//	} galaxy_module_vtable;
//
//	typedef struct galaxy_module {
//	    const galaxy_module_vtable *vtable;
//	} galaxy_module;
//
//	galaxy_module *CreateModule(void);
//
// Callbacks return 0 on success. destroy may be NULL; when set it runs
// once the module is shut down and before the library is unmapped.
package dynlib

import (
	"errors"
	"fmt"
)

var (
	ErrClosed      = errors.New("library closed")
	ErrIncomplete  = errors.New("module vtable incomplete")
	ErrUnsupported = errors.New("dynamic loading not supported on this platform")
)

// Library is an opened native shared library.
type Library interface {
	Path() string
	// FindSymbol returns the address of an exported symbol.
	FindSymbol(name string) (uintptr, error)
	Close() error
}

// Open opens the shared library at path with the platform loader. The
// path is passed through unchanged.
func Open(path string) (Library, error) {
	return open(path)
}

// StatusError is a non-zero status returned by a native callback.
type StatusError struct {
	Op   string
	Code int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("native %s returned status %d", e.Op, e.Code)
}

func status(op string, code int32) error {
	if code == 0 {
		return nil
	}
	return &StatusError{Op: op, Code: code}
}
