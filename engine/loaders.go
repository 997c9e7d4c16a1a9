package engine

import (
	"path/filepath"
	"strings"

	"github.com/skekre98/galaxy/core"
)

// ScriptExt marks module files run by the script loader.
const ScriptExt = ".lua"

// Loaders routes .lua files to script and every other path to native.
func Loaders(native, script core.Loader) core.Loader {
	return core.LoaderFunc(func(path string) (core.Library, error) {
		if strings.EqualFold(filepath.Ext(path), ScriptExt) {
			return script.Open(path)
		}
		return native.Open(path)
	})
}
