// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"maps"
	"slices"
	"sync"
)

// Cache maps module names to loaded modules. Entries are added on the first
// successful load and never evicted. Concurrent loads of the same name are
// collapsed so a unit's top-level code runs at most once.
type Cache struct {
	mu      sync.Mutex
	modules map[string]*Module
	pending map[string]*pendingLoad
}

type pendingLoad struct {
	done chan struct{}
	mod  *Module
	err  error
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		modules: make(map[string]*Module),
		pending: make(map[string]*pendingLoad),
	}
}

// Get returns the cached module for name.
func (c *Cache) Get(name string) (*Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.modules[name]
	return m, ok
}

// Load returns the cached module for name, calling load to produce it when
// absent. Callers racing on the same name wait for the first one and share
// its result; a failed load is not cached, so a later call retries.
//
// load must not, directly or indirectly, call Load for the same name.
func (c *Cache) Load(name string, load func() (*Module, error)) (*Module, error) {
	c.mu.Lock()
	if m, ok := c.modules[name]; ok {
		c.mu.Unlock()
		return m, nil
	}
	if p, ok := c.pending[name]; ok {
		c.mu.Unlock()
		<-p.done
		return p.mod, p.err
	}
	p := &pendingLoad{done: make(chan struct{})}
	c.pending[name] = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, name)
		if p.err == nil && p.mod != nil {
			c.modules[name] = p.mod
		}
		c.mu.Unlock()
		close(p.done)
	}()

	p.err = errPanicked
	p.mod, p.err = load()
	if p.err != nil {
		p.mod = nil
	}
	return p.mod, p.err
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

// Names returns the sorted names of cached modules.
func (c *Cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.modules))
}
