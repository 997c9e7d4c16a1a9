package core

import (
	"errors"
	"fmt"
	"strings"
)

// Module core errors. Use errors.Is to classify a returned error.
var (
	ErrDuplicateModule      = errors.New("module already registered")
	ErrUnknownModule        = errors.New("unknown module")
	ErrInvalidModule        = errors.New("invalid module")
	ErrCyclicDependency     = errors.New("cyclic module dependency")
	ErrModuleInitialization = errors.New("module initialization failed")
	ErrFailedEarlier        = errors.New("module failed earlier and must be registered again")
	ErrDependencyFailed     = errors.New("dependency failed to initialize")
	ErrModulePanic          = errors.New("module panicked")
	ErrNotInitialized       = errors.New("module not initialized")
	ErrAlreadyInitialized   = errors.New("module already initialized")
	ErrInactive             = errors.New("module inactive")

	ErrLibraryLoad         = errors.New("library load failed")
	ErrSymbolNotFound      = errors.New("factory symbol not found")
	ErrFactoryReturnedNull = errors.New("factory returned no module")

	ErrUnknownService = errors.New("service not provided")
)

// CycleError reports a dependency cycle. Path starts and ends with the
// same module name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// InitError reports that Module failed to initialize. Initialized lists
// the modules that were already initialized when the failure happened;
// they are left running.
type InitError struct {
	Module      string
	Initialized []string
	Err         error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize module %q: %v", e.Module, e.Err)
}

func (e *InitError) Unwrap() []error { return []error{ErrModuleInitialization, e.Err} }

// LoadError reports a dynamic loading failure. Kind is one of
// ErrLibraryLoad, ErrSymbolNotFound or ErrFactoryReturnedNull.
type LoadError struct {
	Path   string
	Symbol string
	Kind   error
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load %s: %v", e.Path, e.Kind)
	if e.Symbol != "" {
		msg += " (" + e.Symbol + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
