package config

import "strings"

// mergeMaps overlays src onto dst. Nested maps are merged, anything else
// is replaced. Keys match case-insensitively so GALAXY_MEMORY_BLOCKSIZES
// overrides memory.blockSizes; the first spelling seen is kept. Maps taken
// from src are copied so later layers never write into a source's data.
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		k = existingKey(dst, k)
		sv, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		dv, ok := dst[k].(map[string]any)
		if !ok {
			dv = make(map[string]any, len(sv))
			dst[k] = dv
		}
		mergeMaps(dv, sv)
	}
}

func existingKey(m map[string]any, k string) string {
	if _, ok := m[k]; ok {
		return k
	}
	for have := range m {
		if strings.EqualFold(have, k) {
			return have
		}
	}
	return k
}
