package casm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prisms-center/casm-go/internal/locator"
	"github.com/prisms-center/casm-go/internal/native"
)

// Load-time errors. They are fatal: a Library is never returned alongside
// one, and a failed session stays failed for the life of the process.
type (
	// ExecutableNotFoundError reports that the casm executable is not on PATH.
	ExecutableNotFoundError = locator.ExecutableNotFoundError
	// LibraryNotFoundError carries the executable path and raw dependency
	// listing used while looking for libcasm and libccasm.
	LibraryNotFoundError = locator.LibraryNotFoundError
	// LibrarySessionError reports a failure to load the libraries or bind an
	// entry point. It wraps the locator errors above.
	LibrarySessionError = native.SessionError
)

var (
	// ErrNotBuilt reports a platform without dynamic loading support.
	ErrNotBuilt = native.ErrNotBuilt

	// ErrReleased reports use of a handle after Close.
	ErrReleased = errors.New("handle already released")

	// ErrNullHandle reports a handle that was never created, either a nil
	// receiver or a null pointer returned by the engine.
	ErrNullHandle = errors.New("null handle")

	// ErrSinkInUse reports an attempt to release a capturing sink that an
	// open project still writes to.
	ErrSinkInUse = errors.New("capturing sink is attached to an open project")
)

// HandleKind names the flavour of a caller-owned handle.
type HandleKind string

const (
	HandleCapture HandleKind = "capturing sink"
	HandleProject HandleKind = "project context"
)

// InvalidHandleUseError reports an operation on a released or never-created
// handle. The engine is not called when this error is returned.
type InvalidHandleUseError struct {
	Handle HandleKind
	Op     string
	Err    error
}

func (e *InvalidHandleUseError) Error() string {
	return fmt.Sprintf("casm: %s %s: %v", e.Op, e.Handle, e.Err)
}

func (e *InvalidHandleUseError) Unwrap() error { return e.Err }

// CommandError reports a command that returned a non-zero Status. Stderr is
// whatever the command wrote to its error sink.
type CommandError struct {
	Args   string
	Status Status
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("casm %q: %s (%d): %s", e.Args, e.Status, int(e.Status), e.Status.Description())
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ReadoutDecodingError reports captured output that a caller could not
// interpret. The command itself succeeded.
type ReadoutDecodingError struct {
	Args   string
	Output []byte
	Err    error
}

func (e *ReadoutDecodingError) Error() string {
	return fmt.Sprintf("casm %q: decode output (%d bytes): %v", e.Args, len(e.Output), e.Err)
}

func (e *ReadoutDecodingError) Unwrap() error { return e.Err }
