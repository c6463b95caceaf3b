// Package hostapi exposes the host's capability surface to sandboxed
// scripts. The sandbox decides which bindings a script receives based on its
// permission set; this package only knows how to build them.
package hostapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Host is the opaque capability object the game supplies per execution.
// Scripts reach it only through the bindings built by this package; the
// sandbox never interprets its contents.
type Host interface {
	// StateGet reads a game-state value by key.
	StateGet(key string) (interface{}, bool)

	// StateSet writes a game-state value.
	StateSet(key string, value interface{}) error

	// StateDelete removes a game-state value.
	StateDelete(key string) error

	// StateKeys lists the readable state keys.
	StateKeys() []string

	// Log emits a script-originated log line.
	Log(level slog.Level, message string)
}

// MemoryHost is an in-memory Host backed by a mutex-guarded state map.
// It is the default host for tests and the CLI.
type MemoryHost struct {
	mu    sync.RWMutex
	state map[string]interface{}
}

// NewMemoryHost creates a MemoryHost seeded with the given state.
func NewMemoryHost(seed map[string]interface{}) *MemoryHost {
	state := make(map[string]interface{}, len(seed))
	for k, v := range seed {
		state[k] = v
	}
	return &MemoryHost{state: state}
}

// StateGet implements Host.
func (h *MemoryHost) StateGet(key string) (interface{}, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.state[key]
	return v, ok
}

// StateSet implements Host.
func (h *MemoryHost) StateSet(key string, value interface{}) error {
	if key == "" {
		return fmt.Errorf("state key must not be empty")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state[key] = value
	return nil
}

// StateDelete implements Host.
func (h *MemoryHost) StateDelete(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.state, key)
	return nil
}

// StateKeys implements Host.
func (h *MemoryHost) StateKeys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.state))
	for k := range h.state {
		keys = append(keys, k)
	}
	return keys
}

// Log implements Host by forwarding to the default structured logger.
func (h *MemoryHost) Log(level slog.Level, message string) {
	slog.Log(context.TODO(), level, "Script log", "message", message, "source", "script")
}

// Snapshot returns a copy of the current state for inspection in tests.
func (h *MemoryHost) Snapshot() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]interface{}, len(h.state))
	for k, v := range h.state {
		out[k] = v
	}
	return out
}
