// Package watcher imports OpenAPI documents dropped into a directory.
//
// Every *.json, *.yaml or *.yml file that is created or written is imported
// with an API ID equal to its base name without extension. Bursts of events
// for the same file are coalesced before the import runs.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
)

// DefaultDebounce is how long a file must be quiet before it is imported.
const DefaultDebounce = 250 * time.Millisecond

var specExtensions = []string{".json", ".yaml", ".yml"}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before an import.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithInitialScan imports the specs already present when Run starts.
func WithInitialScan(enabled bool) Option {
	return func(w *Watcher) {
		w.initialScan = enabled
	}
}

// WithImportHook is called after every import attempt. Used by the CLI to
// report progress.
func WithImportHook(hook func(apiID string, fragments int, err error)) Option {
	return func(w *Watcher) {
		w.hook = hook
	}
}

// Watcher imports spec files from a directory as they change.
type Watcher struct {
	specs       driving.SpecService
	log         *zap.Logger
	debounce    time.Duration
	initialScan bool
	hook        func(apiID string, fragments int, err error)

	mu      sync.Mutex
	pending map[string]*time.Timer
	due     map[string]struct{}
	wake    chan struct{}
}

// New creates a watcher that imports through specs. A nil logger discards logs.
func New(specs driving.SpecService, log *zap.Logger, opts ...Option) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		specs:       specs,
		log:         log,
		debounce:    DefaultDebounce,
		initialScan: true,
		pending:     make(map[string]*time.Timer),
		due:         make(map[string]struct{}),
		wake:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches dir until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watching %s: not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.log.Info("watching spec directory", zap.String("dir", dir))

	if w.initialScan {
		w.scan(ctx, dir)
	}

	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !IsSpecFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(event.Name)

		case <-w.wake:
			for _, path := range w.takeDue() {
				w.importFile(ctx, path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule (re)starts the quiet-period timer for path. A fired timer
// marks path as due and wakes Run without blocking, so timers never
// outlive the loop waiting on it.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.due[path] = struct{}{}
		w.mu.Unlock()

		select {
		case w.wake <- struct{}{}:
		default:
		}
	})
}

// takeDue returns and clears the paths whose quiet period has passed.
func (w *Watcher) takeDue() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.due))
	for path := range w.due {
		paths = append(paths, path)
	}
	clear(w.due)
	sort.Strings(paths)
	return paths
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	clear(w.due)
}

func (w *Watcher) scan(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Warn("scanning spec directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !IsSpecFile(e.Name()) {
			continue
		}
		w.importFile(ctx, filepath.Join(dir, e.Name()))
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	apiID := APIIDFromPath(path)
	n, err := w.specs.Import(ctx, apiID, path)
	switch {
	case err == nil:
		w.log.Info("imported spec",
			zap.String("api_id", apiID),
			zap.String("path", path),
			zap.Int("fragments", n),
		)
	case errors.Is(err, context.Canceled):
		return
	default:
		w.log.Warn("importing spec",
			zap.String("api_id", apiID),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	if w.hook != nil {
		w.hook(apiID, n, err)
	}
}

// IsSpecFile reports whether path has a spec document extension.
// Hidden files are ignored.
func IsSpecFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range specExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// APIIDFromPath returns the file base name without its extension.
func APIIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
