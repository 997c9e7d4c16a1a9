// Package config loads the engine configuration from layered sources,
// binds it onto typed structs and validates it.
package config

import "context"

// Source yields one layer of configuration as a nested map. Later layers
// override earlier ones key by key.
type Source interface {
	Name() string
	Load(ctx context.Context) (map[string]any, error)
}

// Event reports a reload that changed the bound value. Changed lists the
// top-level fields that differ.
type Event[T any] struct {
	Changed []string
	Old     T
	New     T
}
