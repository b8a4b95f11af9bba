// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zimp-dev/zimp/internal/config"
	"github.com/zimp-dev/zimp/internal/watch"
	"github.com/zimp-dev/zimp/pkg/archive"

	"github.com/spf13/cobra"
)

type zipFlags struct {
	compiled         bool
	keyFile          string
	optimize         int
	compressionLevel int
	output           string
	watch            bool
}

func newZipCommand(app *App) *cobra.Command {
	flags := &zipFlags{}
	cmd := &cobra.Command{
		Use:   "zip <root>",
		Short: "Build an archive from a unit tree",
		Long: `Build an encrypted, compressed archive from a directory of shell units
or a single unit file.

Every *.sh file below <root> becomes an entry named relative to the parent of
<root>, so a tree ./app yields entries app/__init__.sh, app/util.sh, ... and
the archive ./app.zip. With --compiled the units are stored in the host's
compiled form instead of as source.`,
		Example: `  zimp zip ./app
  zimp zip --key-file app.key --compiled ./app
  zimp zip --output dist/tool.zip ./tool.sh
  zimp zip --watch ./app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runZip(cmd, app, flags, args[0])
		},
	}
	cmd.Flags().BoolVar(&flags.compiled, "compiled", false, "store units in compiled form (default from config mode)")
	cmd.Flags().StringVarP(&flags.keyFile, "key-file", "k", "", "file holding the encryption key (plaintext entries when empty)")
	cmd.Flags().IntVarP(&flags.optimize, "optimize", "O", -1, "host optimization level, -1 for the configured default")
	cmd.Flags().IntVar(&flags.compressionLevel, "compression-level", -1, "deflate level from -2 (huffman only) to 9, 0 stores")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "archive path (default <root>.zip beside root)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild the archive whenever a unit changes")
	return cmd
}

func runZip(cmd *cobra.Command, app *App, flags *zipFlags, root string) error {
	cfg, err := app.loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	kind := modeKind(cmd, cfg, flags.compiled)
	optimize := cfg.Build.Optimize
	if cmd.Flags().Changed("optimize") {
		optimize = flags.optimize
	}
	level := cfg.Build.CompressionLevel
	if cmd.Flags().Changed("compression-level") {
		level = flags.compressionLevel
	}

	key, err := config.ReadKey(flags.keyFile)
	if err != nil {
		return keyError(flags.keyFile, err)
	}

	opts := archive.Options{
		Root:             root,
		Output:           flags.output,
		Key:              key,
		Kind:             kind,
		Optimize:         optimize,
		CompressionLevel: level,
	}
	if err := buildArchive(cmd.Context(), app, opts); err != nil {
		return err
	}
	if !flags.watch {
		return nil
	}
	return watchArchive(cmd.Context(), app, opts)
}

func buildArchive(ctx context.Context, app *App, opts archive.Options) error {
	out, err := archive.Create(ctx, opts)
	if err != nil {
		return err
	}

	r, err := archive.Open(out)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	fmt.Fprintf(app.stdout, "%s Wrote %s (%s, %d units", SuccessStyle.Render("✓"), KeyStyle.Render(out), opts.Kind, len(r.List()))
	if len(opts.Key) > 0 {
		fmt.Fprint(app.stdout, ", encrypted")
	}
	fmt.Fprintln(app.stdout, ")")
	return nil
}

// watchArchive rebuilds the archive on every unit change until ctx ends. A
// failed rebuild is reported and leaves the previous archive in place.
func watchArchive(ctx context.Context, app *App, opts archive.Options) error {
	cfg := watch.Config{Root: opts.Root}
	if info, err := os.Stat(opts.Root); err == nil && !info.IsDir() {
		cfg.Root = filepath.Dir(opts.Root)
		cfg.Patterns = []string{filepath.Base(opts.Root)}
	}
	cfg.OnChange = func(ctx context.Context, changed []string) error {
		slog.Info("rebuilding archive", "root", opts.Root, "changed", changed)
		if err := buildArchive(ctx, app, opts); err != nil {
			renderError(app.stderr, err, app.verbose)
		}
		return nil
	}

	w, err := watch.New(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Watching %s for changes (Ctrl+C to stop)\n", SubtitleStyle.Render("→"), KeyStyle.Render(opts.Root))
	return w.Run(ctx)
}
