package core

import "time"

// Observer receives lifecycle notifications from a Manager. Calls happen
// with the manager lock held and must not call back into the manager.
type Observer interface {
	StateChanged(module string, state State)
	ModuleRemoved(module string)
	Initialized(module string, took time.Duration)
	EventDispatched(event string, delivered, failed int)
	TaskProcessed(module string, kind Kind, err error)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) StateChanged(string, State)        {}
func (NopObserver) ModuleRemoved(string)              {}
func (NopObserver) Initialized(string, time.Duration) {}
func (NopObserver) EventDispatched(string, int, int)  {}
func (NopObserver) TaskProcessed(string, Kind, error) {}
