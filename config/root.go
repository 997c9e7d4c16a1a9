package config

import (
	"log/slog"
	"time"
)

type AppInfo struct {
	Name    string `config:"name" validate:"required"`
	Version string `config:"version" validate:"required"`
}

type LoggingConfig struct {
	Level  slog.Level `config:"level"`
	Format string     `config:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Enabled      bool          `config:"enabled"`
	Addr         string        `config:"addr" validate:"required_if=Enabled true"`
	ReadTimeout  time.Duration `config:"readTimeout" validate:"gte=0"`
	WriteTimeout time.Duration `config:"writeTimeout" validate:"gte=0"`
	IdleTimeout  time.Duration `config:"idleTimeout" validate:"gte=0"`
}

type ActuatorConfig struct {
	BasePath string `config:"basePath" validate:"required,startswith=/"`
}

type MetricsConfig struct {
	Enabled bool `config:"enabled"`
	// Events are labelled by name on top of the engine's own; the rest are
	// counted as "other".
	Events []string `config:"events" validate:"dive,required,max=64"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `config:"metrics"`
}

// Module kinds.
const (
	KindBuiltin = "builtin"
	KindLibrary = "library"
	KindScript  = "script"
)

// ModuleSpec declares one module the engine registers at startup. Builtin
// modules name a Type from the engine catalog; library and script modules
// name the Path they are loaded from.
type ModuleSpec struct {
	Name      string   `config:"name" validate:"required,modulename"`
	Kind      string   `config:"kind" validate:"required,oneof=builtin library script"`
	Type      string   `config:"type" validate:"required_if=Kind builtin"`
	Path      string   `config:"path" validate:"required_unless=Kind builtin"`
	DependsOn []string `config:"dependsOn" validate:"dive,modulename"`
	Disabled  bool     `config:"disabled"`
}

type EngineConfig struct {
	UpdateInterval  time.Duration `config:"updateInterval" validate:"gte=0"`
	ShutdownTimeout time.Duration `config:"shutdownTimeout" validate:"gt=0"`
	ScriptTimeout   time.Duration `config:"scriptTimeout" validate:"gte=0"`
	Modules         []ModuleSpec  `config:"modules" validate:"unique=Name,dive"`
}

type SchedulerConfig struct {
	Workers   int `config:"workers" validate:"gte=0"`
	QueueSize int `config:"queueSize" validate:"gte=0"`
}

type MemoryConfig struct {
	BlockSizes    []int `config:"blockSizes" validate:"dive,gt=0"`
	InitialBlocks int   `config:"initialBlocks" validate:"gte=0"`
	MaxAllocation int   `config:"maxAllocation" validate:"gt=0"`
}

type ResourcesConfig struct {
	MaxCached int `config:"maxCached" validate:"gte=0"`
}

type Root struct {
	App           AppInfo             `config:"app"`
	Logging       LoggingConfig       `config:"logging"`
	Server        ServerConfig        `config:"server"`
	Actuator      ActuatorConfig      `config:"actuator"`
	Observability ObservabilityConfig `config:"observability"`
	Engine        EngineConfig        `config:"engine"`
	Scheduler     SchedulerConfig     `config:"scheduler"`
	Memory        MemoryConfig        `config:"memory"`
	Resources     ResourcesConfig     `config:"resources"`
}

// Defaults sit underneath every other source.
func Defaults() map[string]any {
	return map[string]any{
		"app.name":                      "galaxy",
		"app.version":                   "dev",
		"logging.level":                 "info",
		"logging.format":                "text",
		"server.enabled":                true,
		"server.addr":                   ":8080",
		"server.readTimeout":            "5s",
		"server.writeTimeout":           "10s",
		"server.idleTimeout":            "60s",
		"actuator.basePath":             "/actuator",
		"observability.metrics.enabled": true,
		"engine.updateInterval":         "16ms",
		"engine.shutdownTimeout":        "15s",
		"engine.scriptTimeout":          "1s",
		"scheduler.workers":             4,
		"scheduler.queueSize":           256,
		"memory.blockSizes":             []any{64, 256, 1024},
		"memory.initialBlocks":          16,
		"memory.maxAllocation":          1 << 20,
		"resources.maxCached":           128,
	}
}
