package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/argus-scan/argus/internal/logging"
)

// Watcher triggers onChange whenever a source file under project changes,
// debounced so a burst of saves from one editor action collapses into a
// single re-scan. Grounded on a prior MangleWatcher
// (internal/core/mangle_watcher.go): recursive directory watch, a
// debounce map drained by a ticker, stop/done channels for clean
// shutdown.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	project     string
	exclude     []string
	debounce    map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher builds a Watcher over project, skipping any path matching
// exclude (same patterns Options.ExcludePatterns uses for a plain scan).
func NewWatcher(project string, exclude []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		project:     project,
		exclude:     exclude,
		debounce:    make(map[string]time.Time),
		debounceDur: 400 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start recursively watches project and runs until ctx is cancelled or
// Stop is called, invoking onChange (at most once per debounce window)
// whenever a non-excluded file is created, written, removed or renamed.
func (w *Watcher) Start(ctx context.Context, onChange func()) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := filepath.Walk(w.project, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.project, path)
		if relErr == nil && isExcluded(info.Name(), rel, w.exclude) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	}); err != nil {
		return err
	}

	go w.run(ctx, onChange)
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context, onChange func()) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryOrchestrator).Warn("watch error: %v", err)
		case <-ticker.C:
			if w.drain() {
				onChange()
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, relErr := filepath.Rel(w.project, event.Name)
	if relErr == nil && isExcluded(filepath.Base(event.Name), rel, w.exclude) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.debounce[event.Name] = time.Now()
	w.mu.Unlock()

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
		}
	}
}

// drain reports whether any debounced event has settled past the
// debounce window, clearing it if so.
func (w *Watcher) drain() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	settled := false
	for path, t := range w.debounce {
		if now.Sub(t) >= w.debounceDur {
			delete(w.debounce, path)
			settled = true
		}
	}
	return settled
}
