// SPDX-License-Identifier: MPL-2.0

// Package watch rebuilds archives when the units they are built from change.
//
// A Watcher monitors a unit tree and invokes a callback once the tree has
// been quiet for a debounce period. Events inside the window are coalesced,
// so the callback sees the full set of changed units once.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
// Editors often write a unit as create+write+rename; those collapse into
// one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// DefaultPatterns selects source units.
var DefaultPatterns = []string{"**/*.sh"}

// builtinIgnores never trigger a rebuild.
var builtinIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*~",
	"**/.*.tmp-*",
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the unit tree to watch.
		Root string
		// Patterns are doublestar globs, relative to Root, selecting the files
		// that trigger a rebuild. Empty means DefaultPatterns.
		Patterns []string
		// Ignore adds doublestar globs to the built-in ignores.
		Ignore []string
		// Debounce is the quiet period before OnChange fires.
		Debounce time.Duration
		// OnChange receives the sorted changed paths, relative to Root.
		// Its error is logged and watching continues.
		OnChange func(ctx context.Context, changed []string) error
	}

	// Watcher monitors a unit tree. Run may be called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		ignores  []string
		root     string
		started  atomic.Bool
	}
)

// New validates cfg and registers every directory below cfg.Root.
func New(cfg Config) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, pat := range append(slices.Clone(patterns), cfg.Ignore...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: patterns,
		ignores:  append(slices.Clone(builtinIgnores), cfg.Ignore...),
		root:     root,
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled, which returns nil. Watcher
// failures that cannot recover are returned.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			slog.Debug("failed to close watcher", "root", w.root, "error", err)
		}
	}()

	var (
		mu      sync.Mutex
		pending = map[string]struct{}{}
		timer   *time.Timer
		busy    atomic.Bool
	)

	// fire runs on the timer goroutine. A rebuild still in progress pushes
	// the next one back by another debounce period.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			mu.Lock()
			timer.Reset(w.cfg.Debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			slog.Error("rebuild failed", "root", w.root, "error", err)
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			rel, ok := w.relevant(evt.Name)
			if !ok {
				continue
			}
			slog.Debug("unit changed", "path", rel, "op", evt.Op.String())

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.cfg.Debounce, fire)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			slog.Warn("watcher error", "root", w.root, "error", err)
		}
	}
}

// relevant reports whether path selects a rebuild, and its slash-separated
// path relative to the root.
func (w *Watcher) relevant(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if matchAny(w.ignores, rel) {
		return "", false
	}
	return rel, matchAny(w.patterns, rel)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Warn("not watching inaccessible path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, path); relErr == nil && matchAny(w.ignores, filepath.ToSlash(rel)+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

// maybeAddDir extends the watch to directories created after start.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		slog.Warn("failed to watch new directory", "path", path, "error", err)
	}
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// isFatal reports resource exhaustion, after which the watcher cannot
// recover: inotify watch limits or file descriptor limits.
func isFatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
