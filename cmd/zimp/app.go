// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/zimp-dev/zimp/internal/config"
	"github.com/zimp-dev/zimp/pkg/hostrt"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reads configuration and streams through it.
	App struct {
		Config   ConfigProvider
		Importer *hostrt.Importer
		stdin    io.Reader
		stdout   io.Writer
		stderr   io.Writer

		// set by the root command before any subcommand runs
		verbose bool
		cfgFile string
		logger  *slog.Logger
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Importer *hostrt.Importer
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Importer == nil {
		deps.Importer = hostrt.Default()
	}
	return &App{
		Config:   deps.Config,
		Importer: deps.Importer,
		stdin:    deps.Stdin,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
		logger:   slog.Default(),
	}
}

// loadConfig loads configuration honoring the --config flag.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile})
}

// hostRuntime returns a host runtime wired to the App's streams.
func (a *App) hostRuntime(opts ...hostrt.Option) *hostrt.Runtime {
	return hostrt.NewRuntime(append([]hostrt.Option{hostrt.WithStdIO(a.stdin, a.stdout, a.stderr)}, opts...)...)
}
