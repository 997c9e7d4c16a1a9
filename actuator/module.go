// Package actuator exposes admin endpoints for the engine on the web
// module's router.
package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skekre98/galaxy/core"
	"github.com/skekre98/galaxy/metrics"
	"github.com/skekre98/galaxy/web"
)

const Name = "actuator"

// Registry is the part of core.Manager the endpoints use.
type Registry interface {
	Modules() []core.ModuleInfo
	OnEvent(ctx context.Context, event string) int
	ProcessTask(ctx context.Context, name string, task core.Task) error
}

type Config struct {
	BasePath   string
	AppName    string
	AppVersion string
	// Gatherer backs GET metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

type Module struct {
	core.Lifecycle

	cfg     Config
	reg     Registry
	logger  *slog.Logger
	started time.Time
}

// New registers the endpoints under cfg.BasePath. They answer 503 until
// the module is initialized.
func New(cfg Config, reg Registry, router web.Router, logger *slog.Logger) *Module {
	m := &Module{cfg: cfg, reg: reg, logger: logger.With("module", Name), started: time.Now()}

	g := router.Group(cfg.BasePath, m.requireActive)
	g.GET("/health", m.health)
	g.GET("/info", m.info)
	g.GET("/modules", m.modules)
	g.POST("/events", m.event)
	g.POST("/modules/:name/tasks", m.task)
	if cfg.Gatherer != nil {
		g.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}
	return m
}

func (m *Module) requireActive(c *gin.Context) {
	if err := m.Check(); err != nil {
		web.Problem(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.Next()
}

func (m *Module) health(c *gin.Context) {
	status, code := "UP", http.StatusOK
	checks := []gin.H{}
	for _, info := range m.reg.Modules() {
		if info.State == core.StateFailed {
			status, code = "DOWN", http.StatusServiceUnavailable
		}
		checks = append(checks, gin.H{"name": info.Name, "status": info.State})
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (m *Module) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app": gin.H{
			"name":    m.cfg.AppName,
			"version": m.cfg.AppVersion,
		},
		"runtime": gin.H{
			"go":           runtime.Version(),
			"numGoroutine": runtime.NumGoroutine(),
			"time":         time.Now().UTC().Format(time.RFC3339),
			"uptime":       time.Since(m.started).Round(time.Second).String(),
			"pid":          os.Getpid(),
		},
	})
}

func (m *Module) modules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modules": m.reg.Modules()})
}

type eventRequest struct {
	Event string `json:"event" binding:"required"`
}

func (m *Module) event(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Problem(c, http.StatusBadRequest, err.Error())
		return
	}
	delivered := m.reg.OnEvent(c.Request.Context(), req.Event)
	c.JSON(http.StatusAccepted, gin.H{"event": req.Event, "delivered": delivered})
}

type taskRequest struct {
	Kind    string          `json:"kind" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

func (m *Module) task(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Problem(c, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		web.Problem(c, http.StatusBadRequest, err.Error())
		return
	}

	task := core.NewTask(kind, taskPayload(req.Payload))
	name := c.Param("name")
	if err := m.reg.ProcessTask(c.Request.Context(), name, task); err != nil {
		web.Problem(c, taskStatus(err), err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": task.ID(), "module": name, "kind": kind.String()})
}

// taskPayload unwraps a JSON string so {"payload": "maps/a.bin"} reaches
// the module as maps/a.bin; anything else is passed as raw JSON.
func taskPayload(raw json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	if string(raw) == "null" {
		return nil
	}
	return raw
}

func taskStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownModule):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotInitialized):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (m *Module) Initialize(ctx context.Context) error {
	if err := m.Begin(); err != nil {
		return nil
	}
	m.logger.Info("actuator ready", "basePath", m.cfg.BasePath)
	return nil
}

func (m *Module) Shutdown(ctx context.Context) error {
	_ = m.End()
	return nil
}

func (m *Module) Update(ctx context.Context) error { return nil }

func (m *Module) OnEvent(ctx context.Context, event string) error { return nil }

func (m *Module) ProcessTask(ctx context.Context, task core.Task) error { return nil }
