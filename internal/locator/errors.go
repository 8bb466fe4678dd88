package locator

import (
	"errors"
	"fmt"
)

// ErrNoMatch reports that the dependency listing had no entry for the engine
// library.
var ErrNoMatch = errors.New("no matching dependency entry")

// ExecutableNotFoundError reports that the driver executable is not on PATH.
type ExecutableNotFoundError struct {
	Name string
	Err  error
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("executable %q not found on PATH: %v", e.Name, e.Err)
}

func (e *ExecutableNotFoundError) Unwrap() error { return e.Err }

// LibraryNotFoundError reports that a shared library could not be resolved.
// Listing holds the raw output of the dependency introspection tool and Probed
// the candidate paths that were checked, in order.
type LibraryNotFoundError struct {
	Executable string
	Strategy   string
	Listing    string
	Probed     []string
	Err        error
}

func (e *LibraryNotFoundError) Error() string {
	msg := fmt.Sprintf("casm libraries not found for %q", e.Executable)
	if e.Strategy != "" {
		msg += " (" + e.Strategy + ")"
	}
	if len(e.Probed) > 0 {
		msg += fmt.Sprintf(", probed %v", e.Probed)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LibraryNotFoundError) Unwrap() error { return e.Err }
