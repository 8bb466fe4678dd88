package casm

import (
	"context"

	"github.com/google/uuid"

	"github.com/prisms-center/casm-go/internal/locator"
	"github.com/prisms-center/casm-go/internal/native"
	"github.com/prisms-center/casm-go/pkg/casm/logging"
)

// Library gives access to the process-wide native session. Library values are
// cheap; all of them share the same loaded libraries.
type Library struct {
	session *native.Session
	tbl     *native.Table
	logger  logging.Logger

	stdout standardSink
	stderr standardSink
	null   standardSink
}

// Open loads libcasm and libccasm on first use and returns a Library bound to
// them. Later calls reuse the loaded session regardless of cfg's paths; only
// cfg.Logger is per-Library. A load failure is returned as a
// *LibrarySessionError every time.
func Open(cfg Config) (*Library, error) {
	s, err := native.Load(func() (locator.Paths, error) {
		return Locate(context.Background(), cfg)
	})
	if err != nil {
		return nil, err
	}
	return newLibrary(s, cfg.logger()), nil
}

// FromSession binds a Library to an already built session, such as the
// in-process fake in internal/native/nativetest. A nil logger discards records.
func FromSession(s *native.Session, logger logging.Logger) *Library {
	if logger == nil {
		logger = logging.Nop()
	}
	return newLibrary(s, logger)
}

func newLibrary(s *native.Session, logger logging.Logger) *Library {
	l := &Library{
		session: s,
		tbl:     s.Table,
		logger:  logger,
	}
	l.stdout = standardSink{name: "stdout", ptr: l.tbl.Stdout()}
	l.stderr = standardSink{name: "stderr", ptr: l.tbl.Stderr()}
	l.null = standardSink{name: "null", ptr: l.tbl.NullStream()}
	l.logger.Debug(context.Background(), "casm session ready",
		"engine", s.Paths.Engine,
		"binding", s.Paths.Binding,
	)
	return l
}

// Paths reports where the loaded libraries came from.
func (l *Library) Paths() Paths {
	return l.session.Paths
}

// Stdout returns the engine sink that writes to standard output.
func (l *Library) Stdout() Sink { return l.stdout }

// Stderr returns the engine sink that writes to standard error.
func (l *Library) Stderr() Sink { return l.stderr }

// Null returns the engine sink that discards output.
func (l *Library) Null() Sink { return l.null }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
