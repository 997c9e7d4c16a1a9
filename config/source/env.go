package source

import (
	"context"
	"os"
	"strings"
)

// EnvPrefix is the default prefix of variables Env reads.
const EnvPrefix = "GALAXY_"

// Env reads variables starting with Prefix (EnvPrefix when empty). The
// rest of the name is lowercased and split on underscores into nested
// keys, so GALAXY_SERVER_ADDR becomes server.addr. Keys are matched to
// fields case-insensitively when bound.
type Env struct {
	Prefix string

	// Environ overrides os.Environ; used by tests.
	Environ func() []string
}

func (e *Env) Name() string { return "env" }

func (e *Env) Load(ctx context.Context) (map[string]any, error) {
	prefix := e.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	environ := e.Environ
	if environ == nil {
		environ = os.Environ
	}

	out := make(map[string]any)
	for _, kv := range environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		key = strings.ToLower(strings.TrimPrefix(key, prefix))
		if key == "" {
			continue
		}
		setPath(out, strings.Split(key, "_"), value)
	}
	return out, nil
}
