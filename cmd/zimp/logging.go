// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// newLogger builds the slog logger the CLI installs as default: a
// charmbracelet/log handler writing to w. verbose forces debug level.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "zimp",
		Level:  lvl,
	})
	return slog.New(handler)
}
