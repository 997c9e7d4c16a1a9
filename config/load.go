package config

import (
	"context"

	"github.com/skekre98/galaxy/config/source"
)

// Load builds the default chain: defaults, dir/engine.yaml with the
// profile overlay, GALAXY_* variables, then command-line flags from args.
// Flags named in skip belong to the caller.
func Load(ctx context.Context, dir, profile string, args []string, skip ...string) (*Manager[Root], error) {
	return NewManager[Root](ctx,
		&source.Map{Label: "defaults", Values: Defaults()},
		&source.File{Dir: dir, Profile: profile, Optional: dir == ""},
		&source.Env{},
		&source.CLI{Args: args, Skip: skip},
	)
}
