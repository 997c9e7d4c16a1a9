package script

import (
	"fmt"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/skekre98/galaxy/core"
)

// Loader implements core.Loader for Lua scripts.
type Loader struct {
	logger  *slog.Logger
	timeout time.Duration
}

type Option func(*Loader)

// WithCallTimeout bounds every call into a script module, so a hook that
// never returns cannot hold the manager forever.
func WithCallTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

func NewLoader(logger *slog.Logger, opts ...Option) *Loader {
	l := &Loader{logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loader) Open(path string) (core.Library, error) {
	logger := l.logger.With("script", path)
	st, err := newState(logger)
	if err != nil {
		return nil, err
	}
	st.timeout = l.timeout
	if err := st.doFile(path); err != nil {
		st.close()
		return nil, fmt.Errorf("run %s: %w", path, err)
	}
	return &Script{path: path, state: st, logger: logger}, nil
}

// Script is an executed Lua file; it plays the role of a shared library.
type Script struct {
	path   string
	state  *state
	logger *slog.Logger
}

func (s *Script) Path() string { return s.path }

func (s *Script) Factory(symbol string) (core.Factory, error) {
	if fn := s.state.global(symbol); fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("global %s is %s, not a function", symbol, fn.Type())
	}
	return func() (core.Module, error) {
		self, err := s.state.construct(symbol)
		if err != nil || self == nil {
			return nil, err
		}
		return &Module{state: s.state, self: self, logger: s.logger}, nil
	}, nil
}

func (s *Script) Close() error {
	s.state.close()
	return nil
}
