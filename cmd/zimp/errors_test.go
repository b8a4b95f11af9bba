// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/zimp-dev/zimp/internal/issue"
	"github.com/zimp-dev/zimp/pkg/archive"
	"github.com/zimp-dev/zimp/pkg/envelope"
	"github.com/zimp-dev/zimp/pkg/hostrt"
	"github.com/zimp-dev/zimp/pkg/probe"

	"github.com/stretchr/testify/assert"
	"mvdan.cc/sh/v3/interp"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"authentication", fmt.Errorf("x.sh: %w", envelope.ErrAuthentication), issue.AuthenticationFailedId},
		{"not found", &hostrt.ModuleNotFoundError{Name: "a.b"}, issue.ModuleNotFoundId},
		{"probe", probe.ErrHeaderProbeFailed, issue.HeaderProbeFailedId},
		{"archive io", &archive.IOError{Op: "open", Path: "a.zip", Err: errors.New("boom")}, issue.ArchiveIOId},
		{"decode", &hostrt.DecodeError{Reason: "bad"}, issue.DecodeFailedId},
		{"compile", &hostrt.CompileError{Origin: "x.sh", Err: errors.New("syntax")}, issue.CompileFailedId},
		{"exit status", interp.ExitStatus(2), issue.UnitExecutionFailedId},
		{"actionable wins", issue.NewErrorContext().WithOperation("load config").WithIssue(issue.ConfigLoadFailedId).Wrap(envelope.ErrAuthentication).BuildError(), issue.ConfigLoadFailedId},
		{"unknown", errors.New("other"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, exitCode(&ExitError{Code: 7}))
	assert.Equal(t, 3, exitCode(fmt.Errorf("wrapped: %w", interp.ExitStatus(3))))
	assert.Equal(t, 1, exitCode(errors.New("plain")))
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderError(&buf, &ExitError{Code: 2}, false)
	assert.Empty(t, buf.String(), "bare exit status prints nothing")

	renderError(&buf, errors.New("plain failure"), false)
	assert.Contains(t, buf.String(), "Error:")
	assert.Contains(t, buf.String(), "plain failure")

	buf.Reset()
	renderError(&buf, &hostrt.ModuleNotFoundError{Name: "app.x"}, false)
	assert.Contains(t, buf.String(), "app.x")
	assert.Contains(t, buf.String(), "Module not found")
}
