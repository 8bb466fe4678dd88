package casm

import (
	"context"

	"github.com/prisms-center/casm-go/internal/locator"
	"github.com/prisms-center/casm-go/pkg/casm/logging"
)

// Paths is the resolved location of the casm executable and libraries.
type Paths = locator.Paths

// Config expresses the knobs used to find and load the native libraries.
// The zero value looks for "casm" on PATH and logs nothing.
type Config struct {
	// Executable is the name (or path) of the casm driver used to find the
	// libraries. It is never run. Defaults to "casm".
	Executable string

	// EngineLibrary, when set, is used instead of introspecting Executable.
	EngineLibrary string

	// BindingLibrary overrides the path derived from EngineLibrary. It is only
	// consulted when EngineLibrary is set.
	BindingLibrary string

	// Logger receives lifecycle records. Nil discards them.
	Logger logging.Logger
}

func (c Config) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger
}

func (c Config) locator() *locator.Locator {
	return &locator.Locator{Executable: c.Executable}
}

// Locate resolves the library paths for cfg without loading anything.
func Locate(ctx context.Context, cfg Config) (Paths, error) {
	l := cfg.locator()
	if cfg.EngineLibrary != "" {
		return l.Explicit(cfg.EngineLibrary, cfg.BindingLibrary)
	}
	return l.Locate(ctx)
}
