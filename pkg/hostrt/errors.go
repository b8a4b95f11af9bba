// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound is the host's signal that no finder could provide a module.
	ErrModuleNotFound = errors.New("module not found")
	// ErrDecode is returned when bytes do not deserialize into a Program.
	ErrDecode = errors.New("invalid serialized program")
	// ErrCompile is returned when source text fails to parse.
	ErrCompile = errors.New("compile failed")
	// ErrUndefinedFunction is returned by Module.Call for unknown functions.
	ErrUndefinedFunction = errors.New("undefined function")
)

type (
	// ModuleNotFoundError reports a module name no finder could resolve.
	// It wraps ErrModuleNotFound for errors.Is() compatibility.
	ModuleNotFoundError struct {
		Name string
		// Archive is set when an archive claimed the name but holds no entry for it.
		Archive string
	}

	// DecodeError reports bytes that are not a serialized Program.
	// It wraps ErrDecode for errors.Is() compatibility.
	DecodeError struct {
		Reason string
		Err    error
	}

	// CompileError reports source text that failed to parse.
	// It wraps ErrCompile for errors.Is() compatibility.
	CompileError struct {
		Origin string
		Err    error
	}

	// UndefinedFunctionError is returned when calling a function a module does not define.
	UndefinedFunctionError struct {
		Module string
		Func   string
	}
)

// Error implements the error interface.
func (e *ModuleNotFoundError) Error() string {
	if e.Archive != "" {
		return fmt.Sprintf("no module named %q in archive %q", e.Name, e.Archive)
	}
	return fmt.Sprintf("no module named %q", e.Name)
}

// Unwrap returns ErrModuleNotFound.
func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode, e.Reason)
}

// Is reports ErrDecode so callers can match without unwrapping the cause.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Unwrap returns the underlying decoder error.
func (e *DecodeError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCompile, e.Origin, e.Err)
}

// Is reports ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// Unwrap returns the parser error.
func (e *CompileError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("module %q has no function %q", e.Module, e.Func)
}

// Unwrap returns ErrUndefinedFunction.
func (e *UndefinedFunctionError) Unwrap() error { return ErrUndefinedFunction }

// errPanicked is what waiters on a load see when the loading goroutine panicked.
var errPanicked = errors.New("module load panicked")
