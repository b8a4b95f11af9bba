// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

type (
	// Runtime executes Programs. The zero value is not usable; use NewRuntime.
	Runtime struct {
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		env    []string
		dir    string
	}

	// Option configures a Runtime.
	Option func(*Runtime)
)

// WithStdIO sets the standard streams units run with.
func WithStdIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runtime) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithEnv replaces the inherited process environment ("KEY=value" pairs).
func WithEnv(env []string) Option {
	return func(r *Runtime) {
		r.env = slices.Clone(env)
	}
}

// WithDir sets the working directory units run in. It must be absolute.
func WithDir(dir string) Option {
	return func(r *Runtime) {
		r.dir = dir
	}
}

// NewRuntime creates a runtime that inherits the process environment and
// standard streams unless overridden.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		env:    os.Environ(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discarding returns a copy of r whose units read nothing and write nowhere.
func (r *Runtime) Discarding() *Runtime {
	c := *r
	c.stdin = nil
	c.stdout = io.Discard
	c.stderr = io.Discard
	return &c
}

// Exec runs prog with mod's namespace as its execution context and binds the
// resulting variables and functions to mod. Errors raised by the unit itself,
// including a non-zero exit status, are returned unchanged.
func (r *Runtime) Exec(ctx context.Context, prog *Program, mod *Module) error {
	env := append(slices.Clone(r.env), mod.seed()...)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(r.stdin, r.stdout, r.stderr),
	}
	if r.dir != "" {
		opts = append(opts, interp.Dir(r.dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	runErr := runner.Run(ctx, prog.file)
	mod.bind(runner, env, prog.assignedNames())
	return runErr
}
