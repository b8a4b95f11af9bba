// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for zimp.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zimp-dev/zimp/internal/config"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zimp",
		Short: "Encrypted archives of shell units, loaded in memory",
		Long: TitleStyle.Render("zimp") + SubtitleStyle.Render(" - encrypted archives of shell units") + `

zimp packs a tree of shell units into one encrypted, compressed ZIP archive
and loads modules from it at run time without writing decrypted content to
disk. Units are stored either as source or in the host's compiled form.

` + SubtitleStyle.Render("Examples:") + `
  zimp keygen app.key                 Generate a key file
  zimp zip --key-file app.key ./app   Build app.zip next to ./app
  zimp run --key-file app.key app.util --call main
  zimp inspect app.zip                Show the manifest and entries
  zimp probe                          Print the compiled unit header offset`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := config.DefaultConfig().Log.Level
			if cfg, err := app.loadConfig(cmd.Context()); err == nil {
				level = cfg.Log.Level
			}
			app.logger = newLogger(app.stderr, level, app.verbose)
			slog.SetDefault(app.logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/zimp/config.cue, then ./zimp.cue)")

	rootCmd.AddCommand(
		newZipCommand(app),
		newRunCommand(app),
		newProbeCommand(app),
		newInspectCommand(app),
		newKeygenCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := newRootCommand(app)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, app.verbose)
		}),
	)
	if err != nil {
		os.Exit(exitCode(err))
	}
}
