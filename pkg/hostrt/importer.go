// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Finder resolves module names for an Importer.
type Finder interface {
	// FindModule reports whether the finder is responsible for name. A finder
	// that claims a name owns its outcome: later finders are not consulted.
	FindModule(name string) bool
	// LoadModule loads name, consulting and populating the shared cache.
	LoadModule(ctx context.Context, name string) (*Module, error)
}

// Importer is the host's module-resolution chain: an ordered list of
// finders ending with a default finder that is never removed.
type Importer struct {
	mu       sync.RWMutex
	finders  []Finder
	fallback Finder
	cache    *Cache
}

// NewImporter creates an importer over cache whose chain holds only fallback.
// A nil fallback leaves the chain empty.
func NewImporter(cache *Cache, fallback Finder) *Importer {
	if cache == nil {
		cache = NewCache()
	}
	return &Importer{cache: cache, fallback: fallback}
}

// Cache returns the module cache shared by every finder in the chain.
func (i *Importer) Cache() *Cache {
	return i.cache
}

// Install places f ahead of the default finder, after previously installed
// finders. Installing a finder that is already in the chain is a no-op and
// reports false.
func (i *Importer) Install(f Finder) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if slices.Contains(i.finders, f) {
		return false
	}
	i.finders = append(i.finders, f)
	slog.Debug("finder installed", "finder", f, "chain_length", len(i.finders))
	return true
}

// InstallUnless installs f like Install unless a finder in the chain
// satisfies match, in which case that finder is returned and nothing is
// installed. The lookup and the install happen under one lock.
func (i *Importer) InstallUnless(f Finder, match func(Finder) bool) (Finder, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, existing := range i.finders {
		if match(existing) {
			return existing, false
		}
	}
	i.finders = append(i.finders, f)
	slog.Debug("finder installed", "finder", f, "chain_length", len(i.finders))
	return f, true
}

// Uninstall removes f from the chain and reports whether it was present.
// The default finder cannot be removed.
func (i *Importer) Uninstall(f Finder) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	idx := slices.Index(i.finders, f)
	if idx < 0 {
		return false
	}
	i.finders = slices.Delete(i.finders, idx, idx+1)
	return true
}

// Finders returns the chain in resolution order.
func (i *Importer) Finders() []Finder {
	i.mu.RLock()
	defer i.mu.RUnlock()
	chain := slices.Clone(i.finders)
	if i.fallback != nil {
		chain = append(chain, i.fallback)
	}
	return chain
}

// Import returns the module for name, from the cache if it was loaded
// before, otherwise from the first finder that claims it.
func (i *Importer) Import(ctx context.Context, name string) (*Module, error) {
	if m, ok := i.cache.Get(name); ok {
		return m, nil
	}
	for _, f := range i.Finders() {
		if f.FindModule(name) {
			return f.LoadModule(ctx, name)
		}
	}
	return nil, &ModuleNotFoundError{Name: name}
}

var (
	defaultMu       sync.Mutex
	defaultImporter *Importer
)

// Default returns the process-wide importer, creating it on first use with
// a fresh cache and a PathFinder over the working directory.
func Default() *Importer {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultImporter == nil {
		cache := NewCache()
		defaultImporter = NewImporter(cache, NewPathFinder(NewRuntime(), cache, "."))
	}
	return defaultImporter
}

// ResetDefault discards the process-wide importer and its cache.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultImporter = nil
}
