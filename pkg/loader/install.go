// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zimp-dev/zimp/pkg/hostrt"
	"github.com/zimp-dev/zimp/pkg/unit"
)

// ErrConflictingInstall is returned when an archive is installed into an
// importer that already serves it with a different kind, key or header offset.
var ErrConflictingInstall = errors.New("archive already installed with a different configuration")

type (
	// InstallOption configures InstallSource and InstallCompiled.
	InstallOption func(*installConfig)

	installConfig struct {
		rt  *hostrt.Runtime
		dir string
	}
)

// WithRuntime sets the runtime installed loaders execute units with.
// Defaults to hostrt.NewRuntime().
func WithRuntime(rt *hostrt.Runtime) InstallOption {
	return func(c *installConfig) { c.rt = rt }
}

// WithDir sets the directory the archive file is looked up in.
// Defaults to the working directory.
func WithDir(dir string) InstallOption {
	return func(c *installConfig) { c.dir = dir }
}

// InstallSource registers a loader for the source-unit archive archiveName
// (found as <dir>/<archiveName>.zip) in imp. Installing the same archive into
// the same importer again with the same key returns the existing loader;
// a different kind or key fails with ErrConflictingInstall.
func InstallSource(imp *hostrt.Importer, archiveName string, key []byte, opts ...InstallOption) (*Loader, error) {
	return install(imp, archiveName, Config{
		Archives: map[string]Archive{archiveName: {Key: key}},
		Kind:     unit.Source,
	}, opts)
}

// InstallCompiled registers a loader for the compiled-unit archive
// archiveName in imp, decoding units headerOffset bytes in. See
// probe.HeaderOffset for obtaining the offset. Reinstalling follows the
// rules of InstallSource, with the header offset also required to match.
func InstallCompiled(imp *hostrt.Importer, archiveName string, key []byte, headerOffset int, opts ...InstallOption) (*Loader, error) {
	return install(imp, archiveName, Config{
		Archives:     map[string]Archive{archiveName: {Key: key}},
		Kind:         unit.Compiled,
		HeaderOffset: headerOffset,
	}, opts)
}

func install(imp *hostrt.Importer, archiveName string, cfg Config, opts []InstallOption) (*Loader, error) {
	ic := installConfig{}
	for _, opt := range opts {
		opt(&ic)
	}
	if ic.rt == nil {
		ic.rt = hostrt.NewRuntime()
	}
	cfg.Dir = ic.dir

	l, err := New(ic.rt, imp.Cache(), cfg)
	if err != nil {
		return nil, err
	}
	f, installed := imp.InstallUnless(l, func(f hostrt.Finder) bool {
		return servedBy(f, archiveName) != nil
	})
	if installed {
		return l, nil
	}
	existing := servedBy(f, archiveName)
	if !existing.sameConfig(l, archiveName) {
		return nil, fmt.Errorf("%w: %s (installed as %s)", ErrConflictingInstall, archiveName, existing)
	}
	return existing, nil
}

// Uninstall removes the loader installed for archiveName from imp and closes
// its archive. It reports whether a loader was installed.
func Uninstall(imp *hostrt.Importer, archiveName string) (bool, error) {
	for _, f := range imp.Finders() {
		l := servedBy(f, archiveName)
		if l == nil {
			continue
		}
		if !imp.Uninstall(l) {
			return false, nil
		}
		return true, l.Close()
	}
	return false, nil
}

// servedBy returns f as a Loader when it serves archiveName, nil otherwise.
func servedBy(f hostrt.Finder, archiveName string) *Loader {
	l, ok := f.(*Loader)
	if !ok {
		return nil
	}
	if _, ok := l.archives[archiveName]; !ok {
		return nil
	}
	return l
}

func (l *Loader) sameConfig(other *Loader, archiveName string) bool {
	return l.Kind() == other.Kind() &&
		l.offset == other.offset &&
		bytes.Equal(l.archives[archiveName].Key, other.archives[archiveName].Key)
}
