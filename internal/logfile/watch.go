package logfile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for a burst of writes to settle.
const DefaultDebounce = 2 * time.Second

// Watch calls onChange each time path is written, created or replaced,
// coalescing events that arrive within debounce of each other. The parent
// directory is watched, so a rotated file (rename, then create) is followed.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Events arrive for every file in the directory
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fire = time.After(debounce)
			}

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error for %s: %w", absPath, err)
		}
	}
}
