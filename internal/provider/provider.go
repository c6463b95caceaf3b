// Package provider discovers and serves mod script sources. Mods ship
// embedded scripts through an EmbeddedProvider; server operators can override
// them with external files under the scripts directory, optionally
// hot-reloaded.
package provider

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when no script exists for a mod/name pair.
var ErrNotFound = errors.New("script not found")

// scriptExt is the only recognized script file extension.
const scriptExt = ".tengo"

// Source indicates where a script was loaded from.
type Source string

const (
	SourceEmbedded Source = "embedded"
	SourceExternal Source = "external"
)

// Script is a mod script with its metadata and parsed permission hints.
type Script struct {
	Mod          string
	Name         string
	Content      string
	Source       Source
	LastModified time.Time
	Checksum     string
	Hints        Hints
}

// ID returns the mod/name identifier used across the sandbox.
func (s *Script) ID() string {
	return s.Mod + "/" + s.Name
}

// EmbeddedProvider is implemented by mods that ship scripts in their binary.
type EmbeddedProvider interface {
	// ModName returns the mod the scripts belong to.
	ModName() string

	// Scripts returns script name to source text.
	Scripts() map[string]string
}

// Store holds every known script, external versions shadowing embedded ones.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	fs        afero.Fs
	dir       string
	scripts   map[string]map[string]*Script // mod -> name -> script
	providers map[string]EmbeddedProvider

	watcher       *fsnotify.Watcher
	watcherActive bool
}

// NewStore creates a store reading external scripts from dir on the given
// filesystem.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{
		fs:        fs,
		dir:       dir,
		scripts:   make(map[string]map[string]*Script),
		providers: make(map[string]EmbeddedProvider),
	}
}

// RegisterEmbedded registers a mod's embedded script provider.
func (s *Store) RegisterEmbedded(p EmbeddedProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.providers[p.ModName()] = p
	slog.Debug("Registered embedded script provider", "mod", p.ModName())
}

// Load populates the store: embedded scripts first, then the external
// directory overlay. A missing external directory is not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for mod, p := range s.providers {
		s.loadEmbeddedLocked(mod, p)
	}
	slog.Info("Loaded embedded scripts", "mods", len(s.providers))

	if err := s.loadExternalLocked(); err != nil {
		return fmt.Errorf("failed to load external scripts: %w", err)
	}
	return nil
}

// Get retrieves a script by mod and name.
func (s *Store) Get(mod, name string) (*Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if modScripts, ok := s.scripts[mod]; ok {
		if script, ok := modScripts[name]; ok {
			return script, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, mod, name)
}

// List returns every known script name organized by mod.
func (s *Store) List() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]string, len(s.scripts))
	for mod, modScripts := range s.scripts {
		names := make([]string, 0, len(modScripts))
		for name := range modScripts {
			names = append(names, name)
		}
		result[mod] = names
	}
	return result
}

// loadEmbeddedLocked loads one provider's scripts without overwriting any
// external version already in place.
func (s *Store) loadEmbeddedLocked(mod string, p EmbeddedProvider) {
	if s.scripts[mod] == nil {
		s.scripts[mod] = make(map[string]*Script)
	}

	for name, content := range p.Scripts() {
		if existing, ok := s.scripts[mod][name]; ok && existing.Source == SourceExternal {
			slog.Debug("Keeping external script over embedded version",
				"mod", mod, "script", name)
			continue
		}

		s.scripts[mod][name] = &Script{
			Mod:          mod,
			Name:         name,
			Content:      content,
			Source:       SourceEmbedded,
			LastModified: time.Now(),
			Checksum:     checksum(content),
			Hints:        ParseHints(content),
		}
	}
}

// loadExternalLocked walks the scripts directory, expecting
// <dir>/<mod>/<name>.tengo, and overlays anything it finds.
func (s *Store) loadExternalLocked() error {
	if _, err := s.fs.Stat(s.dir); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Scripts directory does not exist", "path", s.dir)
			return nil
		}
		return err
	}

	return afero.Walk(s.fs, s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		mod, name, ok := s.parseScriptPath(path)
		if !ok {
			return nil
		}

		script, err := s.readExternalLocked(mod, name, path, info.ModTime())
		if err != nil {
			slog.Error("Failed to read external script", "path", path, "error", err)
			return nil
		}

		if s.scripts[mod] == nil {
			s.scripts[mod] = make(map[string]*Script)
		}
		s.scripts[mod][name] = script
		slog.Debug("Loaded external script",
			"mod", mod, "script", name, "size", len(script.Content))
		return nil
	})
}

// readExternalLocked builds a Script from an external file.
func (s *Store) readExternalLocked(mod, name, path string, modTime time.Time) (*Script, error) {
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}

	text := string(content)
	return &Script{
		Mod:          mod,
		Name:         name,
		Content:      text,
		Source:       SourceExternal,
		LastModified: modTime,
		Checksum:     checksum(text),
		Hints:        ParseHints(text),
	}, nil
}

// reload refreshes one script from disk, falling back to the embedded
// version when the external file is gone.
func (s *Store) reload(mod, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, mod, name+scriptExt)
	info, err := s.fs.Stat(path)
	if err != nil {
		s.restoreEmbeddedLocked(mod, name)
		return
	}

	script, err := s.readExternalLocked(mod, name, path, info.ModTime())
	if err != nil {
		slog.Error("Failed to reload external script", "mod", mod, "script", name, "error", err)
		return
	}

	if s.scripts[mod] == nil {
		s.scripts[mod] = make(map[string]*Script)
	}
	s.scripts[mod][name] = script
	slog.Info("Reloaded external script", "mod", mod, "script", name, "checksum", script.Checksum[:12])
}

// restoreEmbeddedLocked reverts a script to its embedded version, or drops it
// entirely when the mod never shipped one.
func (s *Store) restoreEmbeddedLocked(mod, name string) {
	modScripts, ok := s.scripts[mod]
	if !ok {
		return
	}

	p, hasProvider := s.providers[mod]
	if hasProvider {
		if content, ok := p.Scripts()[name]; ok {
			modScripts[name] = &Script{
				Mod:          mod,
				Name:         name,
				Content:      content,
				Source:       SourceEmbedded,
				LastModified: time.Now(),
				Checksum:     checksum(content),
				Hints:        ParseHints(content),
			}
			slog.Info("Restored embedded script after external deletion", "mod", mod, "script", name)
			return
		}
	}

	delete(modScripts, name)
	slog.Info("Removed script with no embedded fallback", "mod", mod, "script", name)
}

// parseScriptPath extracts mod and script name from an external file path.
func (s *Store) parseScriptPath(path string) (mod, name string, ok bool) {
	if filepath.Ext(path) != scriptExt {
		return "", "", false
	}

	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", false
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return "", "", false
	}

	mod = parts[0]
	name = strings.TrimSuffix(parts[len(parts)-1], scriptExt)
	if name == "" {
		return "", "", false
	}
	return mod, name, true
}

// checksum fingerprints script content for change detection.
func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}
