// Package app assembles the sandbox host's core services.
package app

import (
	"log/slog"

	"github.com/spf13/afero"

	"github.com/nholloway/modguard/internal/audit"
	"github.com/nholloway/modguard/internal/config"
	"github.com/nholloway/modguard/internal/engine"
	"github.com/nholloway/modguard/internal/provider"
	"github.com/nholloway/modguard/internal/pubsub"
	"github.com/nholloway/modguard/internal/registry"
	"github.com/nholloway/modguard/internal/sandbox"
	"github.com/nholloway/modguard/internal/validator"
)

// Service keys for dependency lookup through the registry.
var (
	EngineKey   = registry.Key[*engine.Engine]("modguard.engine")
	StoreKey    = registry.Key[*provider.Store]("modguard.script_store")
	ExecutorKey = registry.Key[*sandbox.Executor]("modguard.executor")
)

// Dependencies holds the core services required by the sandbox host.
// This struct is passed from the application entrypoint to wire everything up.
type Dependencies struct {
	Config   *config.Config
	Registry *registry.Registry
	Store    *provider.Store
	Executor *sandbox.Executor
	Engine   *engine.Engine
	Bus      *pubsub.WatermillBridge
	Sink     audit.Sink
}

// New wires the full dependency graph from configuration.
func New(cfg *config.Config) *Dependencies {
	var sink audit.Sink = audit.NewSlogSink(nil)
	var bus *pubsub.WatermillBridge
	if cfg.AuditToBus {
		bus = pubsub.NewWatermillBridge()
		sink = audit.MultiSink{sink, audit.NewPubSubSink(bus)}
	}

	store := provider.NewStore(afero.NewOsFs(), cfg.ScriptsDir)
	v := validator.New(validator.WithComplexityThreshold(cfg.ComplexityThreshold))
	executor := sandbox.New(
		sandbox.WithValidator(v),
		sandbox.WithCacheSize(cfg.CacheSize),
		sandbox.WithSink(sink),
	)
	eng := engine.New(store, executor, v, cfg.Level())

	reg := registry.New(cfg)
	registry.Set(reg, EngineKey, eng)
	registry.Set(reg, StoreKey, store)
	registry.Set(reg, ExecutorKey, executor)

	return &Dependencies{
		Config:   cfg,
		Registry: reg,
		Store:    store,
		Executor: executor,
		Engine:   eng,
		Bus:      bus,
		Sink:     sink,
	}
}

// Close releases background resources.
func (d *Dependencies) Close() {
	d.Engine.Shutdown()
	if d.Bus != nil {
		if err := d.Bus.Close(); err != nil {
			slog.Error("Failed to close message bus", "error", err)
		}
	}
}
