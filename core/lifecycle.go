package core

import "sync"

// Lifecycle holds the initialized/active flags concrete modules embed.
//
// The flags move through never-initialized -> initialized+active ->
// (optionally) inactive -> uninitialized. The zero value is a
// never-initialized module. Lifecycle is safe for concurrent use.
type Lifecycle struct {
	mu          sync.Mutex
	initialized bool
	active      bool
}

// Begin marks the module initialized and active. It fails with
// ErrAlreadyInitialized on a second call.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return ErrAlreadyInitialized
	}
	l.initialized = true
	l.active = true
	return nil
}

// End marks the module uninitialized. Inactive modules may be ended.
func (l *Lifecycle) End() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return ErrNotInitialized
	}
	l.initialized = false
	l.active = false
	return nil
}

// Reset clears both flags; used when Initialize fails after Begin.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	l.initialized = false
	l.active = false
	l.mu.Unlock()
}

// Check reports whether Update, OnEvent and ProcessTask may run.
func (l *Lifecycle) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case !l.initialized:
		return ErrNotInitialized
	case !l.active:
		return ErrInactive
	}
	return nil
}

// Pause deactivates an initialized module. It reports whether the flag
// changed.
func (l *Lifecycle) Pause() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized || !l.active {
		return false
	}
	l.active = false
	return true
}

// Resume reactivates a paused module.
func (l *Lifecycle) Resume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized || l.active {
		return false
	}
	l.active = true
	return true
}

func (l *Lifecycle) Initialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized
}

func (l *Lifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
