package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BaseName is the stem of the configuration files FileSource looks for.
const BaseName = "engine"

// File reads <Dir>/engine.yaml and, when Profile is set, overlays
// <Dir>/engine.<Profile>.yaml on top of it. Both .yaml and .yml are
// accepted. A missing profile file is not an error; a missing base file
// is, unless Optional is set.
type File struct {
	Dir      string
	Profile  string
	Optional bool
}

func (f *File) Name() string { return "file" }

func (f *File) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]any{}
	base := findYAML(f.Dir, BaseName)
	switch {
	case base != "":
		if err := readYAML(base, data); err != nil {
			return nil, err
		}
	case !f.Optional:
		return nil, fmt.Errorf("%s.yaml in %q: %w", BaseName, f.Dir, fs.ErrNotExist)
	}

	if f.Profile == "" {
		return data, nil
	}
	overlayPath := findYAML(f.Dir, BaseName+"."+f.Profile)
	if overlayPath == "" {
		return data, nil
	}
	overlay := map[string]any{}
	if err := readYAML(overlayPath, overlay); err != nil {
		return nil, err
	}
	merge(data, overlay)
	return data, nil
}

func findYAML(dir, stem string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func readYAML(path string, out map[string]any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// merge overlays src onto dst, descending into maps present on both sides.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				merge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}
