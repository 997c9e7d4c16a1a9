// Package resource loads engine assets off the update loop. Reads run on
// the scheduler module and their bytes are cached.
package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/skekre98/galaxy/core"
	"github.com/skekre98/galaxy/scheduler"
)

const Name = "resources"

const EventFlush = "resources.flush"

var ErrEmptyResource = errors.New("resource is empty")

// Scheduler runs jobs off the caller's goroutine.
type Scheduler interface {
	Schedule(fn scheduler.Job) (<-chan error, error)
}

// Callback receives the loaded bytes or the read error.
type Callback func(path string, data []byte, err error)

type Config struct {
	MaxCached int
}

type Module struct {
	core.Lifecycle

	cfg    Config
	sched  Scheduler
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string][]byte
	order []string

	readFile func(string) ([]byte, error)
}

func New(cfg Config, sched Scheduler, logger *slog.Logger) *Module {
	if cfg.MaxCached <= 0 {
		cfg.MaxCached = 128
	}
	return &Module{
		cfg:      cfg,
		sched:    sched,
		logger:   logger.With("module", Name),
		cache:    make(map[string][]byte),
		readFile: os.ReadFile,
	}
}

func (m *Module) Initialize(ctx context.Context) error {
	if err := m.Begin(); err != nil {
		m.logger.Warn("initialize ignored", "error", err)
		return nil
	}
	if m.sched == nil {
		m.Reset()
		return errors.New("resources: no scheduler")
	}
	m.logger.Info("resource loader ready", "maxCached", m.cfg.MaxCached)
	return nil
}

func (m *Module) Shutdown(ctx context.Context) error {
	if err := m.End(); err != nil {
		m.logger.Warn("shutdown ignored", "error", err)
		return nil
	}
	m.Flush()
	return nil
}

// Load reads path on the scheduler and hands the result to cb. The
// returned channel reports the same error cb saw.
func (m *Module) Load(path string, cb Callback) (<-chan error, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m.sched.Schedule(func(ctx context.Context) error {
		data, err := m.fetch(path)
		if cb != nil {
			cb(path, data, err)
		}
		return err
	})
}

func (m *Module) fetch(path string) ([]byte, error) {
	if data, ok := m.Cached(path); ok {
		return data, nil
	}
	data, err := m.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("resources: load %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("resources: load %s: %w", path, ErrEmptyResource)
	}
	m.store(path, data)
	return data, nil
}

func (m *Module) store(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cache[path]; ok {
		return
	}
	for len(m.order) >= m.cfg.MaxCached {
		delete(m.cache, m.order[0])
		m.order = m.order[1:]
	}
	m.cache[path] = data
	m.order = append(m.order, path)
}

func (m *Module) Cached(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.cache[path]
	return data, ok
}

func (m *Module) Flush() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.order)
	clear(m.cache)
	m.order = nil
	return n
}

func (m *Module) Update(ctx context.Context) error { return nil }

func (m *Module) OnEvent(ctx context.Context, event string) error {
	if err := m.Check(); err != nil {
		return nil
	}
	if event == EventFlush {
		m.logger.Info("resource cache flushed", "entries", m.Flush())
	}
	return nil
}

// ProcessTask queues LoadResource tasks. The payload is either the path
// itself or {"path": "..."}.
func (m *Module) ProcessTask(ctx context.Context, task core.Task) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("task ignored", "task", task.ID(), "error", err)
		return nil
	}
	if task.Kind() != core.KindLoadResource {
		return nil
	}

	path := payloadPath(task.Payload())
	if path == "" {
		return fmt.Errorf("resources: task %s has no path", task.ID())
	}
	id := task.ID()
	_, err := m.Load(path, func(path string, data []byte, err error) {
		if err != nil {
			m.logger.Warn("resource load failed", "task", id, "path", path, "error", err)
			return
		}
		m.logger.Debug("resource loaded", "task", id, "path", path, "bytes", len(data))
	})
	return err
}

func payloadPath(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if gjson.ValidBytes(trimmed) {
		if r := gjson.GetBytes(trimmed, "path"); r.Exists() {
			return r.String()
		}
		if r := gjson.ParseBytes(trimmed); r.Type == gjson.String {
			return r.String()
		}
	}
	return string(trimmed)
}
