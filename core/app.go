package core

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// App drives a Manager for the lifetime of a process: initialize, tick
// Update on an interval, then clean up on signal or context cancellation.
type App struct {
	Manager *Manager
	Logger  *slog.Logger

	// UpdateInterval is the tick period; zero disables ticking.
	UpdateInterval time.Duration
	// ShutdownTimeout bounds CleanupModules.
	ShutdownTimeout time.Duration
}

func NewApp(logger *slog.Logger, mgr *Manager) *App {
	return &App{
		Manager:         mgr,
		Logger:          logger,
		UpdateInterval:  16 * time.Millisecond,
		ShutdownTimeout: 15 * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	// 1) Initialize in dependency order; modules that made it stay up
	//    until cleanup.
	if err := a.Manager.InitializeModules(ctx); err != nil {
		a.cleanup()
		return err
	}
	a.Logger.Info("modules initialized", "modules", a.Manager.Initialized())

	// 2) Tick until signal or cancellation.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var tick <-chan time.Time
	if a.UpdateInterval > 0 {
		t := time.NewTicker(a.UpdateInterval)
		defer t.Stop()
		tick = t.C
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case sig := <-stop:
			a.Logger.Info("signal received", "signal", sig.String())
			break loop
		case <-tick:
			a.Manager.Update(ctx)
		}
	}

	// 3) Reverse-order shutdown with a fresh deadline.
	a.cleanup()
	return nil
}

func (a *App) cleanup() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
	defer cancel()
	a.Manager.CleanupModules(shutdownCtx)
	a.Logger.Info("modules cleaned up")
}
