package core

import "context"

// FactorySymbol is the symbol every loadable library must export.
const FactorySymbol = "CreateModule"

// Module is an independently initializable engine subsystem.
//
// The Manager owns a module from registration until it is unregistered or
// cleaned up. Calls that arrive outside the lifecycle sequence (Update
// before Initialize, a second Initialize, ...) must be ignored and logged
// by the module, never crash it.
type Module interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Update(ctx context.Context) error
	OnEvent(ctx context.Context, event string) error
	ProcessTask(ctx context.Context, task Task) error
}
