//go:build darwin || freebsd || linux || windows

package dynlib

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/ebitengine/purego"
)

// vtable mirrors galaxy_module_vtable.
type vtable struct {
	initialize  uintptr
	shutdown    uintptr
	update      uintptr
	onEvent     uintptr
	processTask uintptr
	destroy     uintptr
}

func bindFactory(sym uintptr) func() uintptr {
	var create func() uintptr
	purego.RegisterFunc(&create, sym)
	return create
}

// bindModule reads the vtable of the galaxy_module at self. The memory
// belongs to the library, which outlives the returned module.
func bindModule(self uintptr, logger *slog.Logger) (*nativeModule, error) {
	vt := (*vtable)(*(*unsafe.Pointer)(unsafe.Pointer(self)))
	if vt == nil {
		return nil, fmt.Errorf("%w: null vtable", ErrIncomplete)
	}
	for _, f := range []struct {
		name string
		fn   uintptr
	}{
		{"initialize", vt.initialize},
		{"shutdown", vt.shutdown},
		{"update", vt.update},
		{"on_event", vt.onEvent},
		{"process_task", vt.processTask},
	} {
		if f.fn == 0 {
			// The instance is rejected, so nothing else will ever free it.
			if vt.destroy != 0 {
				var destroy func(self uintptr)
				purego.RegisterFunc(&destroy, vt.destroy)
				destroy(self)
			}
			return nil, fmt.Errorf("%w: %s is null", ErrIncomplete, f.name)
		}
	}

	m := &nativeModule{self: self, logger: logger}
	purego.RegisterFunc(&m.initialize, vt.initialize)
	purego.RegisterFunc(&m.shutdown, vt.shutdown)
	purego.RegisterFunc(&m.update, vt.update)
	purego.RegisterFunc(&m.onEvent, vt.onEvent)
	purego.RegisterFunc(&m.processTask, vt.processTask)
	if vt.destroy != 0 {
		purego.RegisterFunc(&m.destroy, vt.destroy)
	}
	return m, nil
}
