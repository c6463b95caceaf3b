package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// StartWatcher begins monitoring the external scripts directory and reloads
// scripts as their files change. It only works on the real filesystem;
// in-memory filesystems silently skip hot reload.
func (s *Store) StartWatcher(ctx context.Context, enableHotReload bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !enableHotReload {
		slog.Info("Hot-reload disabled, skipping file system watcher setup")
		return nil
	}
	if s.watcherActive {
		slog.Debug("Script watcher already active")
		return nil
	}
	if _, ok := s.fs.(*afero.OsFs); !ok {
		slog.Debug("Filesystem does not support watching, skipping watcher setup")
		return nil
	}
	if _, err := s.fs.Stat(s.dir); os.IsNotExist(err) {
		slog.Debug("Scripts directory does not exist, skipping watcher setup", "path", s.dir)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}

	err = filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to add directories to watcher: %w", err)
	}

	s.watcher = watcher
	s.watcherActive = true
	go s.watchFiles(ctx, watcher)

	slog.Debug("Started file system watcher for script hot-reloading", "directory", s.dir)
	return nil
}

// StopWatcher stops the file system watcher if one is running.
func (s *Store) StopWatcher() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
		s.watcherActive = false
		slog.Info("File system watcher stopped")
	}
}

// watchFiles handles file system events until the context ends or the
// watcher closes.
func (s *Store) watchFiles(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() {
		s.mu.Lock()
		if s.watcher == watcher {
			s.watcher.Close()
			s.watcher = nil
			s.watcherActive = false
		}
		s.mu.Unlock()
		slog.Info("File system watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleFileEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File system watcher error", "error", err)
		}
	}
}

// handleFileEvent reloads or removes a script for a single event.
func (s *Store) handleFileEvent(event fsnotify.Event) {
	mod, name, ok := s.parseScriptPath(event.Name)
	if !ok {
		return
	}

	slog.Debug("File system event",
		"event", event.Op.String(), "path", event.Name, "mod", mod, "script", name)

	// reload covers every event kind: a readable file replaces the script,
	// a missing one reverts it to the embedded version.
	s.reload(mod, name)
}
