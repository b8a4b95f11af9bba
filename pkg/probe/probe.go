// SPDX-License-Identifier: MPL-2.0

// Package probe discovers how many bytes of host header precede the
// serialized program in a compiled unit. The host treats its header layout
// as private, so the loader learns the offset empirically: it compiles an
// empty unit and finds the first offset at which the remainder decodes and
// runs.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/zimp-dev/zimp/pkg/entry"
	"github.com/zimp-dev/zimp/pkg/hostrt"
)

// ErrHeaderProbeFailed is returned when no offset within the compiled empty
// unit yields a loadable program.
var ErrHeaderProbeFailed = errors.New("header offset probe failed")

const probeUnit = "__zimp_probe__"

// Attempt decodes raw[offset:] and executes the result in a throwaway
// module. A nil error means offset is viable.
func Attempt(ctx context.Context, rt *hostrt.Runtime, raw []byte, offset int) error {
	if offset < 0 || offset > len(raw) {
		return &hostrt.DecodeError{Reason: fmt.Sprintf("offset %d outside %d byte unit", offset, len(raw))}
	}
	prog, err := hostrt.Decode(raw[offset:])
	if err != nil {
		return err
	}
	return rt.Exec(ctx, prog, hostrt.NewModule(probeUnit, probeUnit+entry.CompiledSuffix))
}

// Search returns the smallest offset in [0, len(raw)) for which Attempt
// succeeds.
func Search(ctx context.Context, rt *hostrt.Runtime, raw []byte) (int, bool) {
	for offset := range len(raw) {
		if ctx.Err() != nil {
			return 0, false
		}
		if err := Attempt(ctx, rt, raw, offset); err == nil {
			return offset, true
		}
	}
	return 0, false
}

// HeaderOffset compiles an empty unit inside a scratch directory and
// searches it for the header offset. The scratch directory is removed on
// every path.
func HeaderOffset(ctx context.Context, rt *hostrt.Runtime) (int, error) {
	scratch, err := os.MkdirTemp("", "zimp-probe-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHeaderProbeFailed, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			slog.Debug("failed to remove probe scratch dir", "dir", scratch, "error", rmErr)
		}
	}()

	srcPath := filepath.Join(scratch, probeUnit+entry.SourceSuffix)
	if err := os.WriteFile(srcPath, nil, 0o600); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHeaderProbeFailed, err)
	}
	raw, err := hostrt.CompileUnit(nil, srcPath, hostrt.OptimizeDefault, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHeaderProbeFailed, err)
	}
	compiledPath := filepath.Join(scratch, probeUnit+entry.CompiledSuffix)
	if err := os.WriteFile(compiledPath, raw, 0o600); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHeaderProbeFailed, err)
	}
	raw, err = os.ReadFile(compiledPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHeaderProbeFailed, err)
	}

	offset, ok := Search(ctx, rt.Discarding(), raw)
	if !ok {
		return 0, ErrHeaderProbeFailed
	}
	slog.Debug("probed compiled unit header", "offset", offset, "unit_size", len(raw))
	return offset, nil
}
