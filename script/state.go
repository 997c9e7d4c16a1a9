package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

var ErrClosed = errors.New("script closed")

// state serializes access to one LState; gopher-lua states are not
// goroutine-safe.
type state struct {
	mu      sync.Mutex
	L       *lua.LState
	closed  bool
	timeout time.Duration // per call; zero means ctx alone bounds a call
}

func newState(logger *slog.Logger) (*state, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	// io, os, debug and package stay closed.
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua %s library: %w", lib.name, err)
		}
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	api := L.NewTable()
	L.SetField(api, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Info(L.CheckString(1))
		return 0
	}))
	L.SetGlobal("galaxy", api)

	return &state{L: L}, nil
}

// bind makes ctx, narrowed by the state's timeout, the context of the
// next calls into L. The caller holds mu and must call the returned func.
func (s *state) bind(ctx context.Context) (context.Context, func()) {
	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	s.L.SetContext(ctx)
	return ctx, func() {
		s.L.RemoveContext()
		cancel()
	}
}

func (s *state) doFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, done := s.bind(context.Background())
	defer done()
	if err := s.L.DoFile(path); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return err
	}
	return nil
}

// method calls self[name](self, args...). A missing method is a no-op.
// The call is abandoned when ctx is done or the state's timeout passes.
func (s *state) method(ctx context.Context, self *lua.LTable, name string, args ...lua.LValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	fn := s.L.GetField(self, name)
	switch fn.Type() {
	case lua.LTNil:
		return nil
	case lua.LTFunction:
	default:
		return fmt.Errorf("%s is a %s, not a function", name, fn.Type())
	}

	ctx, done := s.bind(ctx)
	defer done()

	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, append([]lua.LValue{self}, args...)...); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%s: %w", name, cerr)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	ok, msg := s.L.Get(-2), s.L.Get(-1)
	s.L.Pop(2)
	if ok == lua.LFalse {
		if msg == lua.LNil {
			return fmt.Errorf("%s returned false", name)
		}
		return fmt.Errorf("%s: %s", name, msg.String())
	}
	return nil
}

// construct calls the global factory and returns its result table, or nil
// when the factory returned nil.
func (s *state) construct(symbol string) (*lua.LTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	ctx, done := s.bind(context.Background())
	defer done()
	fn := s.L.GetGlobal(symbol)
	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	switch v := ret.(type) {
	case *lua.LTable:
		return v, nil
	default:
		if ret == lua.LNil {
			return nil, nil
		}
		return nil, fmt.Errorf("%s returned a %s, want a table", symbol, ret.Type())
	}
}

func (s *state) global(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.L.GetGlobal(name)
}

func (s *state) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.L.Close()
		s.closed = true
	}
}
