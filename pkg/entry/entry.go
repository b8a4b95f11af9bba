// SPDX-License-Identifier: MPL-2.0

// Package entry maps dotted module names onto entry paths inside an archive.
//
// Resolution order (first match wins) for a logical path L:
//   - L itself (a bare unit file)
//   - L + SourceSuffix
//   - L + CompiledSuffix
//   - L + "/__init__" + SourceSuffix (package, source form)
//   - L + "/__init__" + CompiledSuffix (package, compiled form)
package entry

import (
	"errors"
	"strings"
)

const (
	// SourceSuffix marks a unit stored as source text.
	SourceSuffix = ".sh"
	// CompiledSuffix marks a unit stored in compiled form.
	CompiledSuffix = ".shc"
	// PackageInit is the base name of the unit that initializes a package.
	PackageInit = "__init__"
	// Separator separates path components inside an archive.
	Separator = "/"
)

// ErrNotFound is returned by Resolve when no entry matches a logical path.
var ErrNotFound = errors.New("no matching archive entry")

// NameSet is the listing of entry paths an archive offers.
type NameSet interface {
	Contains(name string) bool
}

// Set is an in-memory NameSet.
type Set map[string]struct{}

// NewSet builds a Set from an entry listing.
func NewSet(names []string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// LogicalPath converts a dotted module name into a slash separated path.
func LogicalPath(module string) string {
	return strings.ReplaceAll(module, ".", Separator)
}

// ArchiveName returns the top-level component of a module name, which
// selects the archive, key and mode that apply to it.
func ArchiveName(module string) string {
	name, _, _ := strings.Cut(module, ".")
	return name
}

// Parent returns the dotted name of the package containing module, or ""
// for a top-level module.
func Parent(module string) string {
	i := strings.LastIndexByte(module, '.')
	if i < 0 {
		return ""
	}
	return module[:i]
}

// ModuleName is the inverse of Resolve: it maps an entry path back to the
// dotted module name it provides.
func ModuleName(entryPath string) string {
	p := strings.TrimSuffix(entryPath, CompiledSuffix)
	p = strings.TrimSuffix(p, SourceSuffix)
	p = strings.TrimSuffix(p, Separator+PackageInit)
	return strings.ReplaceAll(p, Separator, ".")
}

// IsPackageEntry reports whether an entry path holds a package initializer.
func IsPackageEntry(entryPath string) bool {
	base := entryPath[strings.LastIndex(entryPath, Separator)+1:]
	return base == PackageInit+SourceSuffix || base == PackageInit+CompiledSuffix
}

// Candidates lists, in resolution order, the entry paths tried for logical.
func Candidates(logical string) []string {
	pkg := logical + Separator + PackageInit
	return []string{
		logical,
		logical + SourceSuffix,
		logical + CompiledSuffix,
		pkg + SourceSuffix,
		pkg + CompiledSuffix,
	}
}

// Resolve returns the first candidate for logical that names contains.
func Resolve(names NameSet, logical string) (string, error) {
	if logical == "" {
		return "", ErrNotFound
	}
	for _, candidate := range Candidates(logical) {
		if names.Contains(candidate) {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}
