// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/zimp-dev/zimp/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `zimp config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage zimp configuration",
		Long: `Manage zimp configuration.

Configuration is read from the first of:
  - the file given with --config
  - $XDG_CONFIG_HOME/zimp/config.cue
  - ./zimp.cue
Environment variables prefixed with ZIMP_ override file values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the user configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintln(app.stdout, userConfigPath())
			return nil
		},
	})

	return cfgCmd
}

func userConfigPath() string {
	return filepath.Join(config.ConfigDir(), config.ConfigFileName+"."+config.ConfigFileExt)
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	out := app.stdout
	value := SuccessStyle
	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if cfg.Source != "" {
		fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("archive_dir"), value.Render(cfg.ArchiveDir))
	fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("mode"), value.Render(cfg.Mode))
	offset := fmt.Sprint(cfg.HeaderOffset)
	if cfg.HeaderOffset == config.ProbeHeaderOffset {
		offset += SubtitleStyle.Render(" (probe)")
	}
	fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("header_offset"), value.Render(offset))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", KeyStyle.Render("archives"))
	if len(cfg.Archives) == 0 {
		fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Archives)) {
		keyed := "plaintext"
		if cfg.Archives[name].KeyFile != "" {
			keyed = "key " + cfg.Archives[name].KeyFile
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", name, value.Render(cfg.ArchivePath(name)), keyed)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", KeyStyle.Render("build"))
	fmt.Fprintf(out, "  optimize: %s\n", value.Render(fmt.Sprint(cfg.Build.Optimize)))
	fmt.Fprintf(out, "  compression_level: %s\n", value.Render(fmt.Sprint(cfg.Build.CompressionLevel)))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", KeyStyle.Render("log"))
	fmt.Fprintf(out, "  level: %s\n", value.Render(cfg.Log.Level))
	return nil
}

func initConfig(app *App) error {
	path := userConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(app.stdout, "%s Config file already exists: %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	path, err := config.Save(config.DefaultConfig())
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Created config file: %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
