package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Manager merges its sources in order, binds the result onto a T and
// keeps the last valid value. A failed reload leaves the current value in
// place.
type Manager[T any] struct {
	sources []Source
	binder  *Binder

	mu      sync.RWMutex
	current T
	subs    []chan Event[T]
}

// NewManager performs the first load; an invalid configuration is an
// error.
func NewManager[T any](ctx context.Context, sources ...Source) (*Manager[T], error) {
	m := &Manager[T]{sources: sources, binder: NewBinder()}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager[T]) Current() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reload rebuilds the configuration from every source. Subscribers hear
// about it only when some field changed.
func (m *Manager[T]) Reload(ctx context.Context) error {
	merged := map[string]any{}
	for _, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		vals, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("load config from %s: %w", src.Name(), err)
		}
		mergeMaps(merged, vals)
	}

	var next T
	if err := m.binder.Bind(merged, &next); err != nil {
		return err
	}

	m.mu.Lock()
	old := m.current
	m.current = next
	subs := append([]chan Event[T](nil), m.subs...)
	m.mu.Unlock()

	if reflect.DeepEqual(old, next) {
		return nil
	}
	evt := Event[T]{Changed: changedFields(old, next), Old: old, New: next}
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of change events. Events that would block
// a full channel are dropped.
func (m *Manager[T]) Subscribe(buffer int) <-chan Event[T] {
	ch := make(chan Event[T], buffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}
