// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/zimp-dev/zimp/internal/config"
	"github.com/zimp-dev/zimp/internal/issue"
	"github.com/zimp-dev/zimp/pkg/entry"
	"github.com/zimp-dev/zimp/pkg/hostrt"
	"github.com/zimp-dev/zimp/pkg/loader"
	"github.com/zimp-dev/zimp/pkg/probe"
	"github.com/zimp-dev/zimp/pkg/unit"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/interp"
)

// errArgsWithoutCall is returned when positional arguments are given but no
// function receives them.
var errArgsWithoutCall = errors.New("arguments after the module name require --call")

type runFlags struct {
	compiled     bool
	keyFile      string
	headerOffset int
	archiveDir   string
	call         string
	vars         bool
}

func newRunCommand(app *App) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <module> [args...]",
		Short: "Import a module from an archive and run it",
		Long: `Import <module> through the archive loader and execute it in memory.

The archive is chosen by the module's top-level name: module app.util is
served by the archive configured as "app", or <archive_dir>/app.zip. Parent
packages are imported first. With --call, a function defined by the module
is invoked with the remaining arguments.`,
		Example: `  zimp run --key-file app.key app
  zimp run app.util --call greet world
  zimp run --compiled --header-offset -1 app --vars`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(cmd, app, flags, args[0], args[1:])
		},
	}
	cmd.Flags().BoolVar(&flags.compiled, "compiled", false, "the archive holds compiled units (default from config mode)")
	cmd.Flags().StringVarP(&flags.keyFile, "key-file", "k", "", "key file for the module's archive (overrides config)")
	cmd.Flags().IntVar(&flags.headerOffset, "header-offset", config.ProbeHeaderOffset, "compiled unit header length, -1 probes it")
	cmd.Flags().StringVar(&flags.archiveDir, "archive-dir", "", "directory holding archives (default from config)")
	cmd.Flags().StringVar(&flags.call, "call", "", "function to call after import")
	cmd.Flags().BoolVar(&flags.vars, "vars", false, "print the module's variables after running")
	return cmd
}

func runModule(cmd *cobra.Command, app *App, flags *runFlags, module string, args []string) error {
	if len(args) > 0 && flags.call == "" {
		return errArgsWithoutCall
	}
	ctx := cmd.Context()
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	rt := app.hostRuntime()
	lcfg, err := loaderConfig(cmd, cfg, flags, module)
	if err != nil {
		return err
	}
	if lcfg.Kind == unit.Compiled && lcfg.HeaderOffset == config.ProbeHeaderOffset {
		offset, probeErr := probe.HeaderOffset(ctx, rt)
		if probeErr != nil {
			return probeErr
		}
		lcfg.HeaderOffset = offset
	}

	l, err := loader.New(rt, app.Importer.Cache(), lcfg)
	if err != nil {
		return err
	}
	app.Importer.Install(l)
	defer func() {
		app.Importer.Uninstall(l)
		if closeErr := l.Close(); closeErr != nil {
			slog.Warn("failed to close archives", "loader", l.String(), "error", closeErr)
		}
	}()

	m, err := app.Importer.Import(ctx, module)
	if err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitError{Code: int(status), Err: err}
		}
		return err
	}

	if flags.call != "" {
		if err := m.Call(ctx, flags.call, args...); err != nil {
			var status interp.ExitStatus
			if errors.As(err, &status) {
				return &ExitError{Code: int(status)}
			}
			return err
		}
	}

	if flags.vars {
		printVars(app, m)
	}
	return nil
}

// loaderConfig merges the configured archives with the command line. The
// module's own archive is always served, keyed by --key-file when given.
func loaderConfig(cmd *cobra.Command, cfg *config.Config, flags *runFlags, module string) (loader.Config, error) {
	kind := modeKind(cmd, cfg, flags.compiled)
	offset := cfg.HeaderOffset
	if cmd.Flags().Changed("header-offset") {
		offset = flags.headerOffset
	}
	dir := cfg.ArchiveDir
	if flags.archiveDir != "" {
		dir = flags.archiveDir
	}

	archives := make(map[string]loader.Archive, len(cfg.Archives)+1)
	for name, ac := range cfg.Archives {
		key, err := config.ReadKey(ac.KeyFile)
		if err != nil {
			return loader.Config{}, keyError(ac.KeyFile, err)
		}
		archives[name] = loader.Archive{Path: ac.Path, Key: key}
	}

	name := entry.ArchiveName(module)
	own := archives[name]
	if flags.keyFile != "" {
		key, err := config.ReadKey(flags.keyFile)
		if err != nil {
			return loader.Config{}, keyError(flags.keyFile, err)
		}
		own.Key = key
	}
	archives[name] = own

	return loader.Config{
		Archives:     archives,
		Dir:          dir,
		Kind:         kind,
		HeaderOffset: offset,
	}, nil
}

// modeKind resolves the unit kind: an explicit --compiled (true or false)
// wins over the configured mode.
func modeKind(cmd *cobra.Command, cfg *config.Config, compiled bool) unit.Kind {
	if !cmd.Flags().Changed("compiled") {
		compiled = cfg.Mode == config.ModeCompiled
	}
	if compiled {
		return unit.Compiled
	}
	return unit.Source
}

func keyError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("read key").
		WithResource(path).
		WithSuggestion("Check the key_file setting or pass --key-file").
		Wrap(err).
		BuildError()
}

func printVars(app *App, m *hostrt.Module) {
	vars := m.Vars()
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		fmt.Fprintf(app.stdout, "%s=%s\n", KeyStyle.Render(name), vars[name])
	}
}
