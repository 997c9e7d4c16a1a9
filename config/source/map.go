package source

import (
	"context"
	"maps"
)

// Map is a fixed set of values, typically the defaults at the bottom of
// the chain. Keys may be dotted ("server.addr").
type Map struct {
	Label  string
	Values map[string]any
}

func (m *Map) Name() string {
	if m.Label == "" {
		return "map"
	}
	return m.Label
}

func (m *Map) Load(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(m.Values))
	for k, v := range m.Values {
		if nested, ok := v.(map[string]any); ok {
			v = maps.Clone(nested)
		}
		setPath(out, splitPath(k, "."), v)
	}
	return out, nil
}
