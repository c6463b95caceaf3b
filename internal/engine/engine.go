// Package engine is the host-facing entry point of the sandbox: it resolves
// mod scripts, derives their effective permissions, and dispatches executions
// to the executor.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nholloway/modguard/internal/cache"
	"github.com/nholloway/modguard/internal/hostapi"
	"github.com/nholloway/modguard/internal/permission"
	"github.com/nholloway/modguard/internal/provider"
	"github.com/nholloway/modguard/internal/sandbox"
	"github.com/nholloway/modguard/internal/validator"
)

// Engine wires the script store, the validator and the sandbox executor into
// one facade. It is safe for concurrent use.
type Engine struct {
	store     *provider.Store
	executor  *sandbox.Executor
	validator *validator.Validator

	mu           sync.RWMutex
	maxLevels    map[string]permission.Level // per-mod level cap
	defaultLevel permission.Level
}

// New creates an engine. The validator should be the same instance the
// executor validates with, so that Validate and Run agree.
func New(store *provider.Store, executor *sandbox.Executor, v *validator.Validator, defaultLevel permission.Level) *Engine {
	return &Engine{
		store:        store,
		executor:     executor,
		validator:    v,
		maxLevels:    make(map[string]permission.Level),
		defaultLevel: defaultLevel,
	}
}

// Initialize loads every known script and optionally starts hot reload.
func (e *Engine) Initialize(ctx context.Context, hotReload bool) error {
	slog.Info("Initializing mod engine")

	if err := e.store.Load(); err != nil {
		return fmt.Errorf("failed to load scripts: %w", err)
	}

	if err := e.store.StartWatcher(ctx, hotReload); err != nil {
		// Hot reload is a convenience; a broken watcher must not stop
		// the host from serving embedded scripts.
		slog.Error("Failed to start file system watcher", "error", err)
	}

	total := 0
	for mod, scripts := range e.store.List() {
		total += len(scripts)
		slog.Debug("Loaded scripts for mod", "mod", mod, "count", len(scripts))
	}
	slog.Info("Mod engine initialized", "total_scripts", total)
	return nil
}

// RegisterMod caps the permission level every script of the mod may run at.
// Unregistered mods run at the engine's default level.
func (e *Engine) RegisterMod(mod string, maxLevel permission.Level) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.maxLevels[mod] = maxLevel
	slog.Info("Registered mod", "mod", mod, "max_level", maxLevel.String())
}

// RunRequest identifies a stored script invocation.
type RunRequest struct {
	Mod        string
	Script     string
	EntryPoint string
	Args       []interface{}
	Host       hostapi.Host
}

// Run executes a stored script under the mod's effective permissions. The
// returned error covers lookup and permission derivation only; execution
// failures are inside the result.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*sandbox.ExecutionResult, error) {
	script, perms, err := e.resolve(req.Mod, req.Script)
	if err != nil {
		return nil, err
	}

	result := e.executor.Execute(ctx, sandbox.Request{
		Source:      script.Content,
		Permissions: perms,
		EntryPoint:  req.EntryPoint,
		Args:        req.Args,
		Host:        req.Host,
	})
	if !result.Success {
		slog.Warn("Script execution unsuccessful",
			"script", script.ID(),
			"execution_id", result.ExecutionID,
			"timed_out", result.TimedOut,
			"error", result.Exception,
		)
	}
	return result, nil
}

// Validate statically checks a stored script under the mod's effective
// permissions without running it.
func (e *Engine) Validate(mod, name string) (*validator.Result, error) {
	script, perms, err := e.resolve(mod, name)
	if err != nil {
		return nil, err
	}
	return e.validator.Validate(script.Content, perms), nil
}

// resolve looks a script up and derives its effective permission set from
// its hints and the mod's registered cap.
func (e *Engine) resolve(mod, name string) (*provider.Script, *permission.Set, error) {
	script, err := e.store.Get(mod, name)
	if err != nil {
		return nil, nil, err
	}

	e.mu.RLock()
	maxLevel, registered := e.maxLevels[mod]
	e.mu.RUnlock()
	if !registered {
		maxLevel = e.defaultLevel
	}

	perms, err := script.Hints.Permissions(script.ID(), maxLevel)
	if err != nil {
		return nil, nil, err
	}
	return script, perms, nil
}

// ListScripts returns every known script organized by mod.
func (e *Engine) ListScripts() map[string][]string {
	return e.store.List()
}

// CacheStats returns the executor's artifact-cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.executor.CacheStats()
}

// Shutdown stops background work.
func (e *Engine) Shutdown() {
	e.store.StopWatcher()
}
