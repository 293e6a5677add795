package generator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces bursts of file events into one regeneration.
const DefaultWatchDebounce = 500 * time.Millisecond

// ChangeHandler is called after a debounced batch of component file changes.
// changed holds record paths, sorted.
type ChangeHandler func(ctx context.Context, changed []string)

// Watcher watches the generator's inputs and invokes a handler when
// component files change.
type Watcher struct {
	gen          *Generator
	watcher      *fsnotify.Watcher
	onChange     ChangeHandler
	debounceTime time.Duration
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewWatcher creates a watcher for gen's inputs.
func NewWatcher(gen *Generator, onChange ChangeHandler) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		gen:          gen,
		watcher:      watcher,
		onChange:     onChange,
		debounceTime: DefaultWatchDebounce,
		logger:       gen.logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	for _, input := range gen.discovery.Inputs() {
		info, err := os.Stat(input)
		if err != nil {
			w.logger.Warn("not watching missing input", "path", input)
			continue
		}
		if !info.IsDir() {
			// Editors often replace files, so watch the parent directory.
			if err := watcher.Add(filepath.Dir(input)); err != nil {
				watcher.Close()
				return nil, err
			}
			continue
		}
		if err := w.addDirectoriesRecursively(input); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	return w, nil
}

// SetDebounce overrides the debounce interval. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounceTime = d
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the file watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	fireCh := make(chan struct{}, 1)
	changedFiles := make(map[string]bool)

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

		case <-w.stopCh:
			stopTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			var touched []string
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.gen.discovery.ShouldWatchDirectory(event.Name) {
						continue
					}
					if err := w.addDirectoriesRecursively(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					// Files written before the watch was added raise no events.
					touched = w.componentFilesIn(event.Name)
				}
			}
			if len(touched) == 0 {
				if !w.shouldProcessEvent(event) {
					continue
				}
				touched = []string{event.Name}
			}
			for _, path := range touched {
				changedFiles[w.gen.RelPath(path)] = true
			}

			stopTimer()
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				select {
				case fireCh <- struct{}{}:
				default:
				}
			})

		case <-fireCh:
			w.trigger(ctx, changedFiles)
			changedFiles = make(map[string]bool)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) trigger(ctx context.Context, changedFiles map[string]bool) {
	if len(changedFiles) == 0 {
		return
	}

	changed := make([]string, 0, len(changedFiles))
	for file := range changedFiles {
		changed = append(changed, file)
	}
	sort.Strings(changed)

	w.logger.Info("component files changed", "count", len(changed))
	w.onChange(ctx, changed)
}

// shouldProcessEvent checks if an event should trigger regeneration.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return w.gen.discovery.Matches(event.Name)
}

func (w *Watcher) componentFilesIn(dir string) []string {
	var files []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != dir && !w.gen.discovery.ShouldWatchDirectory(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.gen.discovery.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// addDirectoriesRecursively adds all directories in the tree to the watcher.
func (w *Watcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Log but continue - don't fail the entire watch for one directory
			w.logger.Warn("error accessing path", "path", path, "error", err)
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if path != rootPath && !w.gen.discovery.ShouldWatchDirectory(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
