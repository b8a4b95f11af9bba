// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/zimp-dev/zimp/pkg/archive"
	"github.com/zimp-dev/zimp/pkg/entry"
	"github.com/zimp-dev/zimp/pkg/envelope"
	"github.com/zimp-dev/zimp/pkg/hostrt"
	"github.com/zimp-dev/zimp/pkg/unit"
)

type (
	// Archive locates one archive and holds its key.
	Archive struct {
		// Path is the archive file. Relative paths are resolved against
		// Config.Dir; empty means <Config.Dir>/<name>.zip.
		Path string
		// Key is the envelope key material. Empty means plaintext entries.
		Key []byte
	}

	// Config describes what a Loader serves and how.
	Config struct {
		// Archives maps archive names (top-level module names) to archives.
		Archives map[string]Archive
		// Dir is the directory archive paths are resolved against.
		Dir string
		// Kind is the unit representation the archives were built with.
		Kind unit.Kind
		// HeaderOffset is the probed host header length, for compiled units.
		HeaderOffset int
	}

	// Loader is a hostrt.Finder backed by zimp archives.
	Loader struct {
		rt       *hostrt.Runtime
		cache    *hostrt.Cache
		strategy unit.Strategy
		offset   int
		archives map[string]Archive
		dir      string

		mu   sync.Mutex
		open map[string]*archive.Reader
	}
)

// New creates a Loader that executes units with rt and records loaded
// modules in cache.
func New(rt *hostrt.Runtime, cache *hostrt.Cache, cfg Config) (*Loader, error) {
	if rt == nil {
		return nil, errors.New("loader requires a runtime")
	}
	if cache == nil {
		return nil, errors.New("loader requires a module cache")
	}
	strategy, err := unit.New(cfg.Kind, unit.Options{Optimize: hostrt.OptimizeDefault, HeaderOffset: cfg.HeaderOffset})
	if err != nil {
		return nil, err
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	archives := maps.Clone(cfg.Archives)
	if archives == nil {
		archives = map[string]Archive{}
	}
	return &Loader{
		rt:       rt,
		cache:    cache,
		strategy: strategy,
		offset:   cfg.HeaderOffset,
		archives: archives,
		dir:      dir,
		open:     map[string]*archive.Reader{},
	}, nil
}

// Kind reports the unit representation the loader expects.
func (l *Loader) Kind() unit.Kind { return l.strategy.Kind() }

// Archives returns the sorted names of the archives the loader serves.
func (l *Loader) Archives() []string {
	return slices.Sorted(maps.Keys(l.archives))
}

// String identifies the loader in logs.
func (l *Loader) String() string {
	return fmt.Sprintf("zimp:%s%v", l.strategy.Kind(), l.Archives())
}

// FindModule claims names whose top-level component is a configured archive.
func (l *Loader) FindModule(name string) bool {
	_, ok := l.archives[entry.ArchiveName(name)]
	return ok
}

// LoadModule returns the module for name, loading its parent package first.
// A parent with no entry of its own is treated as a namespace package.
// Errors raised by unit code are returned unchanged.
func (l *Loader) LoadModule(ctx context.Context, name string) (*hostrt.Module, error) {
	if m, ok := l.cache.Get(name); ok {
		return m, nil
	}
	if parent := entry.Parent(name); parent != "" {
		if _, err := l.LoadModule(ctx, parent); err != nil && !errors.Is(err, hostrt.ErrModuleNotFound) {
			return nil, err
		}
	}
	return l.cache.Load(name, func() (*hostrt.Module, error) {
		return l.load(ctx, name)
	})
}

func (l *Loader) load(ctx context.Context, name string) (*hostrt.Module, error) {
	archiveName := entry.ArchiveName(name)
	a, ok := l.archives[archiveName]
	if !ok {
		return nil, &hostrt.ModuleNotFoundError{Name: name}
	}
	r, err := l.reader(archiveName, a)
	if err != nil {
		return nil, err
	}

	entryPath, err := l.strategy.ResolveEntry(r.Names(), entry.LogicalPath(name))
	if err != nil {
		if errors.Is(err, entry.ErrNotFound) {
			return nil, &hostrt.ModuleNotFoundError{Name: name, Archive: r.Path()}
		}
		return nil, err
	}

	sealed, err := r.Read(entryPath)
	if err != nil {
		return nil, err
	}
	data, err := envelope.Open(sealed, a.Key)
	if err != nil {
		return nil, fmt.Errorf("%s in %s: %w", entryPath, r.Path(), err)
	}
	prog, err := l.strategy.Reconstruct(data, entryPath)
	if err != nil {
		return nil, err
	}

	mod := hostrt.NewModule(name, entryPath)
	mod.Archive = r.Path()
	slog.Debug("executing archived unit", "module", name, "entry", entryPath, "archive", r.Path(), "kind", l.strategy.Kind())
	if err := l.rt.Exec(ctx, prog, mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// reader opens the named archive on first use and keeps it open.
func (l *Loader) reader(name string, a Archive) (*archive.Reader, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.open[name]; ok {
		return r, nil
	}
	path := a.Path
	switch {
	case path == "":
		path = filepath.Join(l.dir, name+archive.Suffix)
	case !filepath.IsAbs(path):
		path = filepath.Join(l.dir, path)
	}
	r, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	l.open[name] = r
	return r, nil
}

// Close closes every archive the loader opened. The loader reopens them on
// the next load.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for name, r := range l.open {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(l.open, name)
	}
	return errors.Join(errs...)
}
