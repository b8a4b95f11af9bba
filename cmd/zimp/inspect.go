// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"time"

	"github.com/zimp-dev/zimp/internal/config"
	"github.com/zimp-dev/zimp/pkg/archive"
	"github.com/zimp-dev/zimp/pkg/envelope"

	"github.com/spf13/cobra"
)

func newInspectCommand(app *App) *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show an archive's manifest and entries",
		Long: `Show the build manifest and the entry list of an archive. With --key-file,
every entry is also decrypted to verify the key and the archive integrity.`,
		Example: `  zimp inspect app.zip
  zimp inspect --key-file app.key app.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInspect(app, args[0], keyFile)
		},
	}
	cmd.Flags().StringVarP(&keyFile, "key-file", "k", "", "verify every entry against this key")
	return cmd
}

func runInspect(app *App, path, keyFile string) error {
	key, err := config.ReadKey(keyFile)
	if err != nil {
		return keyError(keyFile, err)
	}

	r, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	fmt.Fprintln(app.stdout, TitleStyle.Render(r.Path()))
	m, err := r.Manifest()
	if err != nil {
		return err
	}
	if m != nil {
		fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("name:     "), m.Name)
		fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("mode:     "), m.Mode)
		fmt.Fprintf(app.stdout, "  %s %t\n", SubtitleStyle.Render("encrypted:"), m.Encrypted)
		fmt.Fprintf(app.stdout, "  %s %d\n", SubtitleStyle.Render("optimize: "), m.Optimize)
		fmt.Fprintf(app.stdout, "  %s %d\n", SubtitleStyle.Render("units:    "), m.Units)
		if !m.Created.IsZero() {
			fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("created:  "), m.Created.Format(time.RFC3339))
		}
	} else {
		fmt.Fprintln(app.stdout, WarningStyle.Render("  no manifest"))
	}

	fmt.Fprintln(app.stdout)
	for _, e := range r.List() {
		fmt.Fprintf(app.stdout, "  %s %8d %8d\n", KeyStyle.Render(e.Name), e.Size, e.CompressedSize)
	}

	if keyFile == "" {
		return nil
	}
	for _, e := range r.List() {
		sealed, err := r.Read(e.Name)
		if err != nil {
			return err
		}
		if _, err := envelope.Open(sealed, key); err != nil {
			return fmt.Errorf("%s in %s: %w", e.Name, r.Path(), err)
		}
	}
	fmt.Fprintf(app.stdout, "\n%s %d entries verified\n", SuccessStyle.Render("✓"), len(r.List()))
	return nil
}
