//go:build !darwin && !freebsd && !linux && !windows

package dynlib

import "log/slog"

func open(path string) (Library, error) {
	return nil, ErrUnsupported
}

func bindFactory(sym uintptr) func() uintptr {
	return func() uintptr { return 0 }
}

func bindModule(self uintptr, logger *slog.Logger) (*nativeModule, error) {
	return nil, ErrUnsupported
}
