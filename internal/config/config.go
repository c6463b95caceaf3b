// Package config loads the sandbox host configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/nholloway/modguard/internal/permission"
)

// Config holds all configuration for the sandbox host.
type Config struct {
	// CacheSize bounds the compiled-artifact cache.
	CacheSize int `validate:"gt=0"`

	// ComplexityThreshold is the cyclomatic complexity warning bound.
	ComplexityThreshold int `validate:"gt=0"`

	// DefaultLevel is the permission level granted to mods with no
	// explicit registration.
	DefaultLevel string `validate:"oneof=none restricted readonly standard elevated unrestricted"`

	// ScriptsDir is the external scripts directory.
	ScriptsDir string `validate:"required"`

	// HotReload enables the external-script file watcher.
	HotReload bool

	// AuditToBus publishes security events on the in-process bus in
	// addition to the structured log.
	AuditToBus bool
}

// New loads configuration from environment variables, falling back to
// defaults for anything unset.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		CacheSize:           envInt("MODGUARD_CACHE_SIZE", 128),
		ComplexityThreshold: envInt("MODGUARD_COMPLEXITY_THRESHOLD", 12),
		DefaultLevel:        envString("MODGUARD_DEFAULT_LEVEL", "restricted"),
		ScriptsDir:          envString("MODGUARD_SCRIPTS_DIR", "scripts"),
		HotReload:           envBool("MODGUARD_HOT_RELOAD", false),
		AuditToBus:          envBool("MODGUARD_AUDIT_TO_BUS", false),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Level returns the parsed default permission level.
func (c *Config) Level() permission.Level {
	level, err := permission.ParseLevel(c.DefaultLevel)
	if err != nil {
		// Struct validation already pinned the value to a known name.
		return permission.LevelRestricted
	}
	return level
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring non-numeric environment value", "key", key, "value", v)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Ignoring non-boolean environment value", "key", key, "value", v)
		return fallback
	}
	return b
}
