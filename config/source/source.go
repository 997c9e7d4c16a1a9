// Package source provides the configuration sources merged by
// config.Manager. Every source yields a nested string-keyed map; typing
// happens when the merged map is bound.
package source

import "strings"

// setPath stores value under the nested keys of path. An existing leaf on
// the way wins over the new nested value.
func setPath(m map[string]any, path []string, value any) {
	cur := m
	for i, key := range path {
		if key == "" {
			continue
		}
		if i == len(path)-1 {
			cur[key] = value
			return
		}
		next, exists := cur[key]
		if !exists {
			nested := make(map[string]any)
			cur[key] = nested
			cur = nested
			continue
		}
		nested, ok := next.(map[string]any)
		if !ok {
			return
		}
		cur = nested
	}
}

func splitPath(s, sep string) []string {
	return strings.Split(strings.Trim(s, sep), sep)
}
