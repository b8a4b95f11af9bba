// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/zimp-dev/zimp/pkg/probe"

	"github.com/spf13/cobra"
)

func newProbeCommand(app *App) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Print the compiled unit header offset of this host",
		Long: `Compile an empty unit in a scratch directory and search it for the first
offset at which the remainder decodes and runs. The result is the value to
use for header_offset when loading compiled archives.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			offset, err := probeOffset(cmd, app)
			if err != nil {
				return err
			}
			if quiet {
				fmt.Fprintln(app.stdout, offset)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s header offset: %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(fmt.Sprint(offset)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the number")
	return cmd
}

func probeOffset(cmd *cobra.Command, app *App) (int, error) {
	return probe.HeaderOffset(cmd.Context(), app.hostRuntime())
}
