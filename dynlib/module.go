package dynlib

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"github.com/skekre98/galaxy/core"
)

// nativeModule forwards core.Module calls to a galaxy_module vtable. The
// Go side enforces the lifecycle sequence so native code never sees an
// out-of-order call.
type nativeModule struct {
	core.Lifecycle

	self   uintptr
	logger *slog.Logger

	initialize  func(self uintptr) int32
	shutdown    func(self uintptr) int32
	update      func(self uintptr) int32
	onEvent     func(self uintptr, event string) int32
	processTask func(self uintptr, kind int32, payload unsafe.Pointer, n uintptr) int32
	destroy     func(self uintptr)

	destroyOnce sync.Once
}

func (m *nativeModule) Initialize(ctx context.Context) error {
	if err := m.Begin(); err != nil {
		m.logger.Warn("initialize ignored", "error", err)
		return nil
	}
	if err := status("initialize", m.initialize(m.self)); err != nil {
		m.Reset()
		return err
	}
	return nil
}

func (m *nativeModule) Shutdown(ctx context.Context) error {
	if err := m.End(); err != nil {
		m.logger.Warn("shutdown ignored", "error", err)
		return nil
	}
	return status("shutdown", m.shutdown(m.self))
}

func (m *nativeModule) Update(ctx context.Context) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("update ignored", "error", err)
		return nil
	}
	return status("update", m.update(m.self))
}

func (m *nativeModule) OnEvent(ctx context.Context, event string) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("event ignored", "event", event, "error", err)
		return nil
	}
	return status("on_event", m.onEvent(m.self, event))
}

func (m *nativeModule) ProcessTask(ctx context.Context, task core.Task) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("task ignored", "task", task.ID(), "error", err)
		return nil
	}
	payload := task.Payload()
	var p unsafe.Pointer
	if len(payload) > 0 {
		p = unsafe.Pointer(&payload[0])
	}
	rc := m.processTask(m.self, int32(task.Kind()), p, uintptr(len(payload)))
	runtime.KeepAlive(payload)
	return status("process_task", rc)
}

// release runs the native destructor once; the instance must not be used
// afterwards.
func (m *nativeModule) release() {
	m.destroyOnce.Do(func() {
		if m.destroy != nil {
			m.destroy(m.self)
		}
	})
}
