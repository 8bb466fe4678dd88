package native

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prisms-center/casm-go/internal/locator"
)

// ErrNotBuilt reports that this build cannot load shared libraries.
var ErrNotBuilt = errors.New("casm/internal/native: dynamic loading not available on this platform")

// Stage names the step of session construction that failed.
type Stage string

const (
	StageLocate  Stage = "locate"
	StageOpen    Stage = "open"
	StageResolve Stage = "resolve"
	StageBind    Stage = "bind"
)

// SessionError reports a failure to build the library session. It wraps the
// locator error when the libraries could not be found, so errors.As reaches
// *locator.LibraryNotFoundError and its raw dependency listing.
type SessionError struct {
	Stage  Stage
	Path   string
	Symbol string
	Err    error
}

func (e *SessionError) Error() string {
	var b strings.Builder
	b.WriteString("casm library session: ")
	b.WriteString(string(e.Stage))
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Symbol != "" {
		b.WriteString(" symbol ")
		b.WriteString(e.Symbol)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SessionError) Unwrap() error { return e.Err }

// Session is a loaded pair of libraries and their bound entry points. It is
// read-only once built.
type Session struct {
	Paths locator.Paths
	Table *Table

	engine  uintptr
	binding uintptr
}

// NewSession wraps an already populated table, such as an in-process fake.
func NewSession(paths locator.Paths, t *Table) (*Session, error) {
	if err := t.Validate(); err != nil {
		return nil, &SessionError{Stage: StageBind, Err: err}
	}
	return &Session{Paths: paths, Table: t}, nil
}

type dynlib struct {
	open     func(path string) (uintptr, error)
	sym      func(handle uintptr, name string) (uintptr, error)
	register func(fptr any, addr uintptr)
}

// Loader builds a Session at most once.
type Loader struct {
	once    sync.Once
	session *Session
	err     error

	dl *dynlib
}

var process Loader

// Load returns the process-wide session, building it on first use with the
// paths produced by resolve. Later calls return the first outcome and never
// invoke resolve again.
func Load(resolve func() (locator.Paths, error)) (*Session, error) {
	return process.Load(resolve)
}

// Load is the per-loader form of the package-level Load.
func (l *Loader) Load(resolve func() (locator.Paths, error)) (*Session, error) {
	l.once.Do(func() {
		l.session, l.err = l.build(resolve)
	})
	return l.session, l.err
}

func (l *Loader) build(resolve func() (locator.Paths, error)) (*Session, error) {
	dl := l.dl
	if dl == nil {
		dl = &platform
	}
	if dl.open == nil {
		return nil, &SessionError{Stage: StageOpen, Err: ErrNotBuilt}
	}

	paths, err := resolve()
	if err != nil {
		return nil, &SessionError{Stage: StageLocate, Err: err}
	}

	engine, err := dl.open(paths.Engine)
	if err != nil {
		return nil, &SessionError{Stage: StageOpen, Path: paths.Engine, Err: err}
	}
	binding, err := dl.open(paths.Binding)
	if err != nil {
		return nil, &SessionError{Stage: StageOpen, Path: paths.Binding, Err: err}
	}

	t, err := bind(func(name string) (uintptr, error) {
		return dl.sym(binding, name)
	}, dl.register)
	if err != nil {
		var se *SessionError
		if errors.As(err, &se) {
			se.Path = paths.Binding
			return nil, se
		}
		return nil, fmt.Errorf("bind %s: %w", paths.Binding, err)
	}

	return &Session{Paths: paths, Table: t, engine: engine, binding: binding}, nil
}
