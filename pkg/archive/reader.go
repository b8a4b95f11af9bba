// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zimp-dev/zimp/pkg/entry"

	"github.com/klauspost/compress/flate"
)

// Entry describes one file stored in an archive.
type Entry struct {
	Name           string
	Size           uint64
	CompressedSize uint64
}

// Reader gives access to the entries of an open archive. Reads are
// serialized by a single lock; the container is not assumed to tolerate
// concurrent access.
type Reader struct {
	path string

	mu    sync.Mutex
	zr    *zip.ReadCloser
	files map[string]*zip.File
	names entry.Set
}

// Open opens the archive at path.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	r := &Reader{
		path:  path,
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		r.files[f.Name] = f
		names = append(names, f.Name)
	}
	r.names = entry.NewSet(names)
	return r, nil
}

// Path returns the archive's file path.
func (r *Reader) Path() string { return r.path }

// Name returns the archive name: its file name without the .zip suffix.
func (r *Reader) Name() string {
	return strings.TrimSuffix(filepath.Base(r.path), Suffix)
}

// Names returns the set of entry paths in the archive.
func (r *Reader) Names() entry.NameSet { return r.names }

// List returns the archive's entries sorted by name.
func (r *Reader) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.files))
	for name, f := range r.files {
		out = append(out, Entry{Name: name, Size: f.UncompressedSize64, CompressedSize: f.CompressedSize64})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Read returns the raw (still enveloped) payload of an entry.
func (r *Reader) Read(name string) (data []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.zr == nil {
		return nil, &IOError{Op: "read", Path: r.path, Err: fs.ErrClosed}
	}
	f, ok := r.files[name]
	if !ok {
		return nil, &IOError{Op: "read", Path: r.path, Err: fmt.Errorf("%s: %w", name, fs.ErrNotExist)}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &IOError{Op: "read", Path: r.path, Err: fmt.Errorf("%s: %w", name, err)}
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = &IOError{Op: "read", Path: r.path, Err: closeErr}
		}
	}()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, &IOError{Op: "read", Path: r.path, Err: fmt.Errorf("%s: %w", name, err)}
	}
	return data, nil
}

// Manifest returns the build manifest stored in the archive comment, or nil
// if the archive has none.
func (r *Reader) Manifest() (*Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.zr == nil {
		return nil, &IOError{Op: "read", Path: r.path, Err: fs.ErrClosed}
	}
	return ParseManifest(r.zr.Comment)
}

// Close releases the archive. Closing twice is a no-op.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.zr == nil {
		return nil
	}
	err := r.zr.Close()
	r.zr = nil
	if err != nil && !errors.Is(err, fs.ErrClosed) {
		return &IOError{Op: "close", Path: r.path, Err: err}
	}
	return nil
}
