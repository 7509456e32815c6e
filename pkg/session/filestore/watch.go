package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever the session file is modified by someone
// other than this store. It blocks until ctx is done and returns ctx.Err();
// onChange runs on the calling goroutine, so no call is in progress once
// Watch has returned. The parent directory is watched because writers
// replace the file by rename.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := s.newWatcher()
	if err != nil {
		return err
	}
	return s.watchLoop(ctx, watcher, onChange)
}

func (s *Store) newWatcher() (*fsnotify.Watcher, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return watcher, nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) error {
	defer func() { _ = watcher.Close() }()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if s.external(ev) && ctx.Err() == nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("session file watcher error", "path", s.path, "error", err)
		}
	}
}

// external reports whether ev changed the session file to content this store
// did not write itself.
func (s *Store) external(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
		return false
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}

	// #nosec G304 -- path comes from client configuration
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	if err != nil {
		slog.Debug("session file unreadable after change", "path", s.path, "error", err)
		return false
	}
	return !s.ownWrite(data)
}
