// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zimp-dev/zimp/pkg/entry"
)

// PathFinder is the default finder: it loads units from plain files under a
// list of search directories, source or compiled, using the same resolution
// order as archives.
type PathFinder struct {
	rt    *Runtime
	cache *Cache
	dirs  []string
}

// NewPathFinder creates a finder searching dirs in order.
func NewPathFinder(rt *Runtime, cache *Cache, dirs ...string) *PathFinder {
	return &PathFinder{rt: rt, cache: cache, dirs: dirs}
}

// String identifies the finder in logs.
func (f *PathFinder) String() string {
	return "path:" + strings.Join(f.dirs, string(os.PathListSeparator))
}

// dirSet exposes the regular files of a directory as an entry.NameSet.
type dirSet struct {
	fsys fs.FS
}

func (d dirSet) Contains(name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(d.fsys, name)
	return err == nil && info.Mode().IsRegular()
}

func (f *PathFinder) locate(name string) (dir, entryPath string, ok bool) {
	logical := entry.LogicalPath(name)
	for _, dir := range f.dirs {
		p, err := entry.Resolve(dirSet{fsys: os.DirFS(dir)}, logical)
		if err == nil {
			return dir, p, true
		}
	}
	return "", "", false
}

// FindModule claims names that resolve to a file in one of the search dirs.
func (f *PathFinder) FindModule(name string) bool {
	_, _, ok := f.locate(name)
	return ok
}

// LoadModule compiles or decodes the file backing name and executes it.
func (f *PathFinder) LoadModule(ctx context.Context, name string) (*Module, error) {
	return f.cache.Load(name, func() (*Module, error) {
		dir, entryPath, ok := f.locate(name)
		if !ok {
			return nil, &ModuleNotFoundError{Name: name}
		}
		path := filepath.Join(dir, filepath.FromSlash(entryPath))
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &ModuleNotFoundError{Name: name}
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var prog *Program
		if strings.HasSuffix(entryPath, entry.CompiledSuffix) {
			prog, err = DecodeUnit(data)
		} else {
			prog, err = Compile(data, path, OptimizeDefault)
		}
		if err != nil {
			return nil, err
		}

		mod := NewModule(name, entryPath)
		mod.File = path
		if err := f.rt.Exec(ctx, prog, mod); err != nil {
			return nil, err
		}
		return mod, nil
	})
}
