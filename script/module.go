package script

import (
	"context"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/skekre98/galaxy/core"
)

// Module adapts a Lua module table to core.Module.
type Module struct {
	core.Lifecycle

	state  *state
	self   *lua.LTable
	logger *slog.Logger
}

func (m *Module) Initialize(ctx context.Context) error {
	if err := m.Begin(); err != nil {
		m.logger.Warn("initialize ignored", "error", err)
		return nil
	}
	if err := m.state.method(ctx, m.self, "initialize"); err != nil {
		m.Reset()
		return err
	}
	return nil
}

func (m *Module) Shutdown(ctx context.Context) error {
	if err := m.End(); err != nil {
		m.logger.Warn("shutdown ignored", "error", err)
		return nil
	}
	return m.state.method(ctx, m.self, "shutdown")
}

func (m *Module) Update(ctx context.Context) error {
	if err := m.Check(); err != nil {
		return nil
	}
	return m.state.method(ctx, m.self, "update")
}

func (m *Module) OnEvent(ctx context.Context, event string) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("event ignored", "event", event, "error", err)
		return nil
	}
	return m.state.method(ctx, m.self, "on_event", lua.LString(event))
}

func (m *Module) ProcessTask(ctx context.Context, task core.Task) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("task ignored", "task", task.ID(), "error", err)
		return nil
	}
	return m.state.method(ctx, m.self, "process_task", lua.LString(task.Kind().String()), lua.LString(task.Text()))
}
