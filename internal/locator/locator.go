package locator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	DefaultExecutable  = "casm"
	DefaultEngineBase  = "libcasm"
	DefaultBindingBase = "libccasm"
)

// Paths is the resolved location of both libraries.
type Paths struct {
	Executable string
	Engine     string
	Binding    string
}

// Runner executes an introspection command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Locator resolves Paths. The zero value looks for "casm" on PATH using the
// host strategy.
type Locator struct {
	Executable  string
	EngineBase  string
	BindingBase string

	Strategy Strategy
	Run      Runner
	LookPath func(string) (string, error)
	Stat     func(string) (os.FileInfo, error)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() // #nosec G204 -- fixed tool names
}

func (l *Locator) defaults() Locator {
	out := *l
	if out.Executable == "" {
		out.Executable = DefaultExecutable
	}
	if out.EngineBase == "" {
		out.EngineBase = DefaultEngineBase
	}
	if out.BindingBase == "" {
		out.BindingBase = DefaultBindingBase
	}
	if out.Strategy == nil {
		out.Strategy = StrategyFor(runtime.GOOS)
	}
	if out.Run == nil {
		out.Run = execRunner
	}
	if out.LookPath == nil {
		out.LookPath = exec.LookPath
	}
	if out.Stat == nil {
		out.Stat = os.Stat
	}
	return out
}

// Locate finds the executable and derives both library paths from its
// dependency listing.
func (l *Locator) Locate(ctx context.Context) (Paths, error) {
	cfg := l.defaults()

	exe, err := cfg.LookPath(cfg.Executable)
	if err != nil {
		return Paths{}, &ExecutableNotFoundError{Name: cfg.Executable, Err: err}
	}
	if abs, err := filepath.Abs(exe); err == nil {
		exe = abs
	}

	name, args := cfg.Strategy.Command(exe)
	out, err := cfg.Run(ctx, name, args...)
	listing := string(out)
	if err != nil {
		return Paths{}, &LibraryNotFoundError{
			Executable: exe,
			Strategy:   cfg.Strategy.Name(),
			Listing:    listing,
			Err:        fmt.Errorf("run %s: %w", name, err),
		}
	}

	engine, ok := cfg.Strategy.Pick(exe, listing, cfg.EngineBase)
	if !ok {
		return Paths{}, &LibraryNotFoundError{
			Executable: exe,
			Strategy:   cfg.Strategy.Name(),
			Listing:    listing,
			Err:        fmt.Errorf("%w for %s", ErrNoMatch, cfg.EngineBase),
		}
	}

	binding, err := cfg.derive(exe, engine, listing)
	if err != nil {
		return Paths{}, err
	}
	p := Paths{Executable: exe, Engine: engine, Binding: binding}
	if err := cfg.check(p, listing); err != nil {
		return Paths{}, err
	}
	return p, nil
}

// Explicit validates caller-supplied library paths without running the
// introspection tool.
func (l *Locator) Explicit(engine, binding string) (Paths, error) {
	cfg := l.defaults()
	if binding == "" {
		var err error
		if binding, err = cfg.derive("", engine, ""); err != nil {
			return Paths{}, err
		}
	}
	p := Paths{Engine: engine, Binding: binding}
	if err := cfg.check(p, ""); err != nil {
		return Paths{}, err
	}
	return p, nil
}

func (l Locator) check(p Paths, listing string) error {
	probed := make([]string, 0, 2)
	for _, path := range []string{p.Engine, p.Binding} {
		probed = append(probed, path)
		if _, err := l.Stat(path); err != nil {
			return &LibraryNotFoundError{
				Executable: p.Executable,
				Strategy:   l.Strategy.Name(),
				Listing:    listing,
				Probed:     probed,
				Err:        err,
			}
		}
	}
	return nil
}

// derive returns the binding path next to engine. An engine file name without
// EngineBase has no binding counterpart.
func (l Locator) derive(exe, engine, listing string) (string, error) {
	binding := DeriveBinding(engine, l.EngineBase, l.BindingBase)
	if !strings.Contains(filepath.Base(engine), l.EngineBase) || binding == engine {
		return "", &LibraryNotFoundError{
			Executable: exe,
			Strategy:   l.Strategy.Name(),
			Listing:    listing,
			Probed:     []string{engine},
			Err:        fmt.Errorf("%w: cannot derive %s from %s", ErrNoMatch, l.BindingBase, filepath.Base(engine)),
		}
	}
	return binding, nil
}

// DeriveBinding substitutes bindingBase for engineBase in the file name of
// enginePath. Directory components are left untouched.
func DeriveBinding(enginePath, engineBase, bindingBase string) string {
	dir, file := filepath.Split(enginePath)
	return dir + strings.Replace(file, engineBase, bindingBase, 1)
}
