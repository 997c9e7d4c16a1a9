// Package web is the admin HTTP server module. Routes are registered when
// the module is built; the server listens between Initialize and Shutdown.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skekre98/galaxy/core"
)

const Name = "web"

type Module struct {
	core.Lifecycle

	cfg    Config
	logger *slog.Logger
	engine *gin.Engine

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	done   chan struct{}
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Module {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger = logger.With("module", Name)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestID(logger), RecoveryProblem(), AccessLog())
	r.Use(o.Middlewares...)
	for _, reg := range o.Routes {
		reg(r)
	}
	r.NoRoute(func(c *gin.Context) {
		Problem(c, http.StatusNotFound, "no route for "+c.Request.URL.Path)
	})

	return &Module{cfg: cfg, logger: logger, engine: r}
}

// Router lets other modules add routes before the server starts.
func (m *Module) Router() Router { return m.engine }

func (m *Module) Handler() http.Handler { return m.engine }

// Addr is the bound listen address while the server runs.
func (m *Module) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *Module) Initialize(ctx context.Context) error {
	if err := m.Begin(); err != nil {
		m.logger.Warn("initialize ignored", "error", err)
		return nil
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		m.Reset()
		return fmt.Errorf("web listen %s: %w", m.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:      m.engine,
		ReadTimeout:  m.cfg.ReadTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		IdleTimeout:  m.cfg.IdleTimeout,
	}
	done := make(chan struct{})

	m.mu.Lock()
	m.server, m.addr, m.done = srv, ln.Addr(), done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.logger.Info("http server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

func (m *Module) Shutdown(ctx context.Context) error {
	if err := m.End(); err != nil {
		m.logger.Warn("shutdown ignored", "error", err)
		return nil
	}

	m.mu.Lock()
	srv, done := m.server, m.done
	m.server, m.addr = nil, nil
	m.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("http shutdown: %w", err)
	}
	<-done
	m.logger.Info("http server stopped")
	return nil
}

func (m *Module) Update(ctx context.Context) error { return nil }

func (m *Module) OnEvent(ctx context.Context, event string) error { return nil }

func (m *Module) ProcessTask(ctx context.Context, task core.Task) error { return nil }
