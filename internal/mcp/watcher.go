package mcp

// Implementation Plan:
// 1. Use fsnotify to watch the directory holding the code map file
// 2. Ignore events for other files in that directory
// 3. Debounce file system events (500ms)
// 4. Trigger reload on debounce timeout, keeping old state on failure
// 5. Thread-safe start/stop

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long the watcher waits for writes to settle.
const DefaultReloadDebounce = 500 * time.Millisecond

// FileWatcher watches one file and triggers a reload when it changes. The
// parent directory is watched so atomic rename-over writes are seen.
type FileWatcher struct {
	reloadable   Reloadable
	watcher      *fsnotify.Watcher
	target       string
	debounceTime time.Duration
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewFileWatcher creates a new file watcher for path.
func NewFileWatcher(reloadable Reloadable, path string, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileWatcher{
		reloadable:   reloadable,
		watcher:      watcher,
		target:       abs,
		debounceTime: DefaultReloadDebounce,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// SetDebounce changes the debounce window. Call before Start.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.debounceTime = d
}

// Start begins watching for file changes.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.watch(ctx)
}

// Stop stops the file watcher.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.stopCh)
		<-fw.doneCh // Wait for goroutine to finish
		fw.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (fw *FileWatcher) watch(ctx context.Context) {
	defer close(fw.doneCh)

	var debounceTimer *time.Timer
	reloadCh := make(chan struct{}, 1)
	stopTimer := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-fw.stopCh:
			stopTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.target {
				continue
			}

			// Rename covers editors and tools that replace the file atomically
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				stopTimer()
				debounceTimer = time.AfterFunc(fw.debounceTime, func() {
					select {
					case reloadCh <- struct{}{}:
					default:
					}
				})
			}

		case <-reloadCh:
			fw.triggerReload(ctx)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

// triggerReload executes a reload of the reloadable component.
func (fw *FileWatcher) triggerReload(ctx context.Context) {
	fw.logger.Debug("reloading", "path", fw.target)
	start := time.Now()

	if err := fw.reloadable.Reload(ctx); err != nil {
		fw.logger.Error("reload failed, keeping previous state", "path", fw.target, "error", err)
		return
	}

	fw.logger.Info("reloaded", "path", fw.target, "took", time.Since(start))
}
