package source

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// CLI turns dotted long flags into nested keys: --server.addr=:9090 and
// --server.addr :9090 both become server.addr. Single-dash long flags are
// accepted; positional arguments and empty values are skipped. Flags
// named in Skip are left for the caller's own flag set.
type CLI struct {
	Args []string
	Skip []string
}

func (c *CLI) Name() string { return "cli" }

func (c *CLI) Load(ctx context.Context) (map[string]any, error) {
	args := normalizeArgs(c.Args)

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true

	for _, arg := range args {
		if name := flagName(arg); name != "" && fs.Lookup(name) == nil {
			fs.String(name, "", "")
		}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(c.Skip))
	for _, s := range c.Skip {
		skip[s] = true
	}

	out := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		v := f.Value.String()
		if v == "" || skip[f.Name] {
			return
		}
		setPath(out, splitPath(f.Name, "."), v)
	})
	return out, nil
}

// normalizeArgs rewrites -long.flag to --long.flag; single-letter flags
// keep their single dash.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		rest, single := strings.CutPrefix(a, "-")
		if single && !strings.HasPrefix(rest, "-") && len(rest) > 1 && rest[0] != '=' {
			a = "--" + rest
		}
		out[i] = a
	}
	return out
}

func flagName(arg string) string {
	if !strings.HasPrefix(arg, "--") {
		return ""
	}
	name := strings.TrimLeft(arg, "-")
	name, _, _ = strings.Cut(name, "=")
	return name
}
