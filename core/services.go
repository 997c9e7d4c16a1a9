package core

import (
	"fmt"
	"reflect"
	"sync"
)

// Services is a typed registry used to hand collaborators (logger,
// config, the manager, other modules) to the module constructors that
// need them, instead of sharing package-level globals.
type Services struct {
	mu  sync.RWMutex
	reg map[reflect.Type]any
}

func NewServices() *Services {
	return &Services{reg: make(map[reflect.Type]any)}
}

// Provide stores v under its static type T, replacing any earlier value.
func Provide[T any](s *Services, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg[reflect.TypeFor[T]()] = v
}

// Lookup returns the value provided for T.
func Lookup[T any](s *Services) (T, error) {
	s.mu.RLock()
	raw, ok := s.reg[reflect.TypeFor[T]()]
	s.mu.RUnlock()

	var zero T
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrUnknownService, reflect.TypeFor[T]())
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("services: wrong type. have=%T want=%v", raw, reflect.TypeFor[T]())
	}
	return v, nil
}

// MustLookup is Lookup for values wired at startup; it panics when T is
// missing.
func MustLookup[T any](s *Services) T {
	v, err := Lookup[T](s)
	if err != nil {
		panic(err)
	}
	return v
}
