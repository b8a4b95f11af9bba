// SPDX-License-Identifier: MPL-2.0

// Package unit selects between the two representations a unit can be
// archived in. The choice is made once, when a Strategy is built, and every
// later call goes through the Strategy's capabilities.
package unit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zimp-dev/zimp/pkg/entry"
	"github.com/zimp-dev/zimp/pkg/hostrt"
)

// Kind is the representation units are archived in.
type Kind int

const (
	// Source units are stored as text and compiled by the host at load time.
	Source Kind = iota + 1
	// Compiled units are stored as the host's compiled form and decoded at load time.
	Compiled
)

// ErrInvalidKind is returned by ParseKind for unknown names.
var ErrInvalidKind = errors.New("invalid unit kind")

// ParseKind parses "source" or "compiled".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "":
		return Source, nil
	case "compiled":
		return Compiled, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected source or compiled)", ErrInvalidKind, s)
	}
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case Source:
		return "source"
	case Compiled:
		return "compiled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Suffix returns the entry suffix units of this kind are stored under.
func (k Kind) Suffix() string {
	if k == Compiled {
		return entry.CompiledSuffix
	}
	return entry.SourceSuffix
}

// Options parameterize a Strategy.
type Options struct {
	// Optimize is the host optimization level used when creating entries.
	Optimize int
	// HeaderOffset is where the serialized program starts in a compiled
	// unit. Only used by the Compiled strategy.
	HeaderOffset int
}

// Strategy is the capability set the archive creator and loader need from a
// unit representation.
type Strategy interface {
	// Kind reports the representation.
	Kind() Kind
	// ResolveEntry maps a logical path to an entry in an archive listing.
	ResolveEntry(names entry.NameSet, logical string) (string, error)
	// Reconstruct turns decrypted entry bytes into an executable Program
	// labelled with origin.
	Reconstruct(data []byte, origin string) (*hostrt.Program, error)
	// CreateEntry turns a source file, at relative path rel (slash separated,
	// with its source suffix), into the entry path and payload to archive.
	CreateEntry(rel string, src []byte, modTime time.Time) (string, []byte, error)
}

// New returns the Strategy for kind.
func New(kind Kind, opts Options) (Strategy, error) {
	if _, err := hostrt.NormalizeOptimize(opts.Optimize); err != nil {
		return nil, err
	}
	switch kind {
	case Source:
		return sourceStrategy{optimize: opts.Optimize}, nil
	case Compiled:
		if opts.HeaderOffset < 0 {
			return nil, fmt.Errorf("header offset must not be negative, got %d", opts.HeaderOffset)
		}
		return compiledStrategy{optimize: opts.Optimize, offset: opts.HeaderOffset}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}
}

type sourceStrategy struct {
	optimize int
}

func (sourceStrategy) Kind() Kind { return Source }

func (sourceStrategy) ResolveEntry(names entry.NameSet, logical string) (string, error) {
	return entry.Resolve(names, logical)
}

func (sourceStrategy) Reconstruct(data []byte, origin string) (*hostrt.Program, error) {
	return hostrt.Compile(data, origin, hostrt.OptimizeDefault)
}

// CreateEntry stores the source text as is, after checking that it parses.
func (s sourceStrategy) CreateEntry(rel string, src []byte, _ time.Time) (string, []byte, error) {
	if _, err := hostrt.Compile(src, rel, s.optimize); err != nil {
		return "", nil, err
	}
	return rel, src, nil
}

type compiledStrategy struct {
	optimize int
	offset   int
}

func (compiledStrategy) Kind() Kind { return Compiled }

func (compiledStrategy) ResolveEntry(names entry.NameSet, logical string) (string, error) {
	return entry.Resolve(names, logical)
}

// Reconstruct skips the host header by the configured offset and decodes
// the rest without consulting the header.
func (s compiledStrategy) Reconstruct(data []byte, _ string) (*hostrt.Program, error) {
	if s.offset > len(data) {
		return nil, &hostrt.DecodeError{Reason: fmt.Sprintf("header offset %d beyond %d byte unit", s.offset, len(data))}
	}
	return hostrt.Decode(data[s.offset:])
}

func (s compiledStrategy) CreateEntry(rel string, src []byte, modTime time.Time) (string, []byte, error) {
	raw, err := hostrt.CompileUnit(src, rel, s.optimize, modTime)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSuffix(rel, entry.SourceSuffix) + entry.CompiledSuffix, raw, nil
}
