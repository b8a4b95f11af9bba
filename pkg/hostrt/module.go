// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/zimp-dev/zimp/pkg/entry"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Namespace variables every module starts with.
const (
	VarName    = "__name__"
	VarFile    = "__file__"
	VarPackage = "__package__"
)

// shellVars are maintained by the interpreter itself and never belong to a
// module's namespace.
var shellVars = map[string]bool{
	"HOME": true, "PWD": true, "OLDPWD": true, "IFS": true, "OPTIND": true,
	"OPTARG": true, "UID": true, "EUID": true, "GID": true, "PPID": true,
	"RANDOM": true, "SRANDOM": true, "SECONDS": true, "BASH_VERSION": true,
	"DIRSTACK": true, "EPOCHSECONDS": true, "EPOCHREALTIME": true,
	"PS1": true, "PS2": true, "PS3": true, "PS4": true, "LINENO": true,
	"PIPESTATUS": true, "BASH_REMATCH": true, "REPLY": true, "SHELLOPTS": true,
}

// Module is a loaded unit: the variables and functions its top-level code
// left behind, bound to the name it was imported as.
type Module struct {
	// Name is the dotted module name.
	Name string
	// File is the provenance of the unit, e.g. its entry path in an archive.
	File string
	// Package is the dotted name of the package the module belongs to.
	Package string
	// Archive names the archive the module was loaded from, if any.
	Archive string

	mu        sync.Mutex
	runner    *interp.Runner
	inherited map[string]string
	assigned  map[string]bool
	vars      map[string]string
	funcs     map[string]bool
}

// NewModule creates an empty module bound to name and file. A file that is a
// package initializer makes the module its own package.
func NewModule(name, file string) *Module {
	pkg := entry.Parent(name)
	if entry.IsPackageEntry(file) {
		pkg = name
	}
	return &Module{
		Name:    name,
		File:    file,
		Package: pkg,
		vars:    map[string]string{},
		funcs:   map[string]bool{},
	}
}

func (m *Module) seed() []string {
	return []string{
		VarName + "=" + m.Name,
		VarFile + "=" + m.File,
		VarPackage + "=" + m.Package,
	}
}

// bind attaches the runner that executed the unit and captures the
// namespace it holds. Inherited environment entries are not part of the
// namespace unless the unit assigns them, even to the value they already had.
func (m *Module) bind(runner *interp.Runner, env []string, assigned map[string]bool) {
	inherited := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			inherited[k] = v
		}
	}
	for _, k := range []string{VarName, VarFile, VarPackage} {
		delete(inherited, k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runner = runner
	m.inherited = inherited
	m.assigned = assigned
	m.capture()
}

// capture must be called with m.mu held.
func (m *Module) capture() {
	vars := make(map[string]string, len(m.runner.Vars))
	for name, vr := range m.runner.Vars {
		if !vr.Declared() || shellVars[name] {
			continue
		}
		value := vr.String()
		if prev, ok := m.inherited[name]; ok && prev == value && !m.assigned[name] {
			continue
		}
		vars[name] = value
	}
	for _, kv := range m.seed() {
		k, v, _ := strings.Cut(kv, "=")
		if _, ok := vars[k]; !ok {
			vars[k] = v
		}
	}

	funcs := make(map[string]bool, len(m.runner.Funcs))
	for name := range m.runner.Funcs {
		funcs[name] = true
	}

	m.vars = vars
	m.funcs = funcs
}

// Get returns the value of a namespace variable.
func (m *Module) Get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vars[name]
	return v, ok
}

// Vars returns a copy of the module namespace.
func (m *Module) Vars() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.vars)
}

// Funcs returns the sorted names of the functions the module defines.
func (m *Module) Funcs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.funcs))
}

// Call invokes a function defined by the module with args as its positional
// parameters. The call runs in the module's interpreter, so it sees and may
// update the module namespace. Errors from the function are returned as is.
func (m *Module) Call(ctx context.Context, fn string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runner == nil || !m.funcs[fn] {
		return &UndefinedFunctionError{Module: m.Name, Func: fn}
	}

	call, err := syntax.NewParser().Parse(strings.NewReader(fn+` "$@"`), m.File)
	if err != nil {
		return &CompileError{Origin: m.File, Err: err}
	}
	if err := interp.Params(append([]string{"--"}, args...)...)(m.runner); err != nil {
		return err
	}

	callErr := m.runner.Run(ctx, call.Stmts[0])
	m.capture()
	return callErr
}
