// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zimp-dev/zimp/internal/config"
	"github.com/zimp-dev/zimp/internal/issue"
	"github.com/zimp-dev/zimp/pkg/archive"
	"github.com/zimp-dev/zimp/pkg/envelope"
	"github.com/zimp-dev/zimp/pkg/hostrt"
	"github.com/zimp-dev/zimp/pkg/probe"

	"mvdan.cc/sh/v3/interp"
)

// classifyError maps an error chain to the issue catalog entry that best
// explains it. Zero means no catalog entry applies.
func classifyError(err error) issue.Id {
	var actionable *issue.ActionableError
	if errors.As(err, &actionable) && actionable.Issue != 0 {
		return actionable.Issue
	}

	var status interp.ExitStatus
	switch {
	case errors.Is(err, envelope.ErrAuthentication):
		return issue.AuthenticationFailedId
	case errors.Is(err, hostrt.ErrModuleNotFound):
		return issue.ModuleNotFoundId
	case errors.Is(err, probe.ErrHeaderProbeFailed):
		return issue.HeaderProbeFailedId
	case errors.Is(err, archive.ErrArchiveIO):
		return issue.ArchiveIOId
	case errors.Is(err, hostrt.ErrDecode):
		return issue.DecodeFailedId
	case errors.Is(err, hostrt.ErrCompile):
		return issue.CompileFailedId
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId
	case errors.As(err, &status):
		return issue.UnitExecutionFailedId
	}
	return 0
}

// renderError prints err followed by the matching catalog entry. An
// ExitError without a cause only carries a status and prints nothing.
func renderError(w io.Writer, err error, verbose bool) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var actionable *issue.ActionableError
	if errors.As(err, &actionable) {
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), actionable.Format(verbose))
	} else {
		fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Error:"), err)
	}

	id := classifyError(err)
	if id == 0 {
		return
	}
	if catalogEntry := issue.Get(id); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", id, "error", renderErr)
			return
		}
		fmt.Fprint(w, rendered)
	}
}

// exitCode returns the process status for err: the unit's own status when
// it exited non-zero, 1 otherwise.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var status interp.ExitStatus
	if errors.As(err, &status) && status != 0 {
		return int(status)
	}
	return 1
}
