// Package scheduler is the engine's task scheduler module: a fixed set of
// worker goroutines draining a bounded job queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/skekre98/galaxy/core"
)

const Name = "scheduler"

// Events understood by the scheduler.
const (
	EventPause  = "pause"
	EventResume = "resume"
)

var (
	ErrStopped   = errors.New("scheduler not running")
	ErrQueueFull = errors.New("scheduler queue full")
)

type Config struct {
	Workers   int
	QueueSize int
}

// Job is a unit of work run on a worker goroutine. ctx is cancelled when
// shutdown runs out of time.
type Job func(ctx context.Context) error

type job struct {
	fn   Job
	done chan error
}

type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type Module struct {
	core.Lifecycle

	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	running bool
	queue   chan job
	group   *errgroup.Group
	cancel  context.CancelFunc

	completed atomic.Int64
	failed    atomic.Int64
}

func New(cfg Config, logger *slog.Logger) *Module {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Module{cfg: cfg, logger: logger.With("module", Name)}
}

func (m *Module) Initialize(ctx context.Context) error {
	if err := m.Begin(); err != nil {
		m.logger.Warn("initialize ignored", "error", err)
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	queue := make(chan job, m.cfg.QueueSize)
	for i := 0; i < m.cfg.Workers; i++ {
		g.Go(func() error {
			m.work(gctx, queue)
			return nil
		})
	}

	m.mu.Lock()
	m.queue, m.group, m.cancel, m.running = queue, g, cancel, true
	m.mu.Unlock()

	m.logger.Info("scheduler started", "workers", m.cfg.Workers, "queue", m.cfg.QueueSize)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones. If ctx expires
// first, running jobs see their context cancelled.
func (m *Module) Shutdown(ctx context.Context) error {
	if err := m.End(); err != nil {
		m.logger.Warn("shutdown ignored", "error", err)
		return nil
	}

	m.mu.Lock()
	m.running = false
	close(m.queue)
	g, cancel := m.group, m.cancel
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	defer cancel()
	select {
	case <-done:
		m.logger.Info("scheduler stopped", "completed", m.completed.Load())
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return fmt.Errorf("scheduler drain: %w", ctx.Err())
	}
}

func (m *Module) work(ctx context.Context, queue <-chan job) {
	for j := range queue {
		err := run(ctx, j.fn)
		if err != nil {
			m.failed.Add(1)
			m.logger.Warn("job failed", "error", err)
		} else {
			m.completed.Add(1)
		}
		j.done <- err
		close(j.done)
	}
}

func run(ctx context.Context, fn Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Schedule queues fn without blocking. The returned channel yields the
// job's error once it ran.
func (m *Module) Schedule(fn Job) (<-chan error, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return nil, ErrStopped
	}
	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case m.queue <- j:
		return j.done, nil
	default:
		return nil, ErrQueueFull
	}
}

func (m *Module) Stats() Stats {
	m.mu.RLock()
	queued := len(m.queue)
	m.mu.RUnlock()
	return Stats{
		Workers:   m.cfg.Workers,
		Queued:    queued,
		Completed: m.completed.Load(),
		Failed:    m.failed.Load(),
	}
}

func (m *Module) Update(ctx context.Context) error {
	if err := m.Check(); err != nil {
		return nil
	}
	if s := m.Stats(); s.Queued == m.cfg.QueueSize {
		m.logger.Warn("scheduler saturated", "queued", s.Queued)
	}
	return nil
}

func (m *Module) OnEvent(ctx context.Context, event string) error {
	// resume must get through while paused
	if event == EventResume {
		if m.Resume() {
			m.logger.Info("scheduler resumed")
		}
		return nil
	}
	if err := m.Check(); err != nil {
		m.logger.Debug("event ignored", "event", event, "error", err)
		return nil
	}
	if event == EventPause && m.Pause() {
		m.logger.Info("scheduler paused")
	}
	return nil
}

// ProcessTask runs compute tasks. The payload is JSON:
// {"name": "...", "spin": n} where spin is a number of busy iterations.
func (m *Module) ProcessTask(ctx context.Context, task core.Task) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("task ignored", "task", task.ID(), "error", err)
		return nil
	}
	if task.Kind() != core.KindCompute {
		m.logger.Debug("task kind not handled", "task", task.ID(), "kind", task.Kind())
		return nil
	}

	payload := gjson.ParseBytes(task.Payload())
	name := payload.Get("name").String()
	spin := payload.Get("spin").Int()
	id := task.ID()

	_, err := m.Schedule(func(ctx context.Context) error {
		var acc int64
		for i := int64(0); i < spin; i++ {
			if i%4096 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			acc += i
		}
		m.logger.Debug("compute task done", "task", id, "name", name, "result", acc)
		return nil
	})
	return err
}
