// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
)

// ErrArchiveIO is the sentinel for containers that cannot be read or written.
var ErrArchiveIO = errors.New("archive I/O failed")

// IOError reports a failed container operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s archive %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IOError) Unwrap() error { return e.Err }

// Is matches ErrArchiveIO.
func (e *IOError) Is(target error) bool { return target == ErrArchiveIO }
