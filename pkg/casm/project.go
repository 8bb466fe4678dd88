package casm

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
)

// Project is an open project context. Its root is fixed for its lifetime;
// Refresh reloads state from disk in place.
type Project struct {
	lib  *Library
	ptr  uintptr
	root string
	id   string

	// The engine keeps the construction sinks; a capturing sink among them
	// stays attached until Close.
	sinks    Sinks
	released atomic.Bool
}

// OpenProject constructs a project context for the project at root. The
// engine writes construction and later diagnostics to sinks. A capturing sink
// passed here cannot be closed before the project is.
func (l *Library) OpenProject(root string, sinks Sinks) (*Project, error) {
	out, debug, errs, err := l.sinkHandles(sinks, "open project with")
	if err != nil {
		return nil, err
	}
	attached := make([]*CapturingSink, 0, 3)
	for _, s := range []Sink{sinks.Out, sinks.Debug, sinks.Err} {
		c, ok := s.(*CapturingSink)
		if !ok {
			continue
		}
		if err := c.attach("open project with"); err != nil {
			for _, a := range attached {
				a.detach()
			}
			return nil, err
		}
		attached = append(attached, c)
	}

	ptr := l.tbl.PrimClexNew(root, out, debug, errs)
	runtime.KeepAlive(sinks)
	if ptr == 0 {
		for _, a := range attached {
			a.detach()
		}
		return nil, fmt.Errorf("open project %s: %w", root,
			&InvalidHandleUseError{Handle: HandleProject, Op: "create", Err: ErrNullHandle})
	}

	p := &Project{lib: l, ptr: ptr, root: root, id: newID(), sinks: sinks}
	runtime.SetFinalizer(p, (*Project).finalize)
	l.logger.Debug(context.Background(), "project opened", "project", p.id, "root", root)
	return p, nil
}

// WithProject opens the project at root, runs fn and closes the project on
// every exit path.
func (l *Library) WithProject(root string, sinks Sinks, fn func(*Project) error) (err error) {
	p, err := l.OpenProject(root, sinks)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(p)
}

// Root returns the project root the context was opened with.
func (p *Project) Root() string { return p.root }

func (p *Project) handle(op string) (uintptr, error) {
	if p == nil || p.ptr == 0 {
		return 0, &InvalidHandleUseError{Handle: HandleProject, Op: op, Err: ErrNullHandle}
	}
	if p.released.Load() {
		return 0, &InvalidHandleUseError{Handle: HandleProject, Op: op, Err: ErrReleased}
	}
	return p.ptr, nil
}

// RefreshOptions selects which parts of a project context Refresh reloads.
// Flags are independent and any subset may be set.
//
// The engine does not check whether a combination is consistent with the
// context's current state. Clearing the cluster expansion data while other
// code still relies on it, for instance, is the caller's problem to avoid.
type RefreshOptions struct {
	// Settings rereads project_settings.json.
	Settings bool
	// Composition rereads composition_axes.json.
	Composition bool
	// ChemRef rereads chemical_reference.json.
	ChemRef bool
	// Configs rereads the supercell and configuration lists.
	Configs bool
	// ClearClex drops cached orbitrees, clexulators and ECI.
	ClearClex bool
}

// IsZero reports whether no flag is set.
func (o RefreshOptions) IsZero() bool {
	return o == RefreshOptions{}
}

// Refresh reloads the selected parts of the context from disk. With no flag
// set it does nothing. Problems in the reloaded files do not surface here;
// they show up as a failing Status from the next command.
func (p *Project) Refresh(opts RefreshOptions) error {
	ptr, err := p.handle("refresh")
	if err != nil {
		return err
	}
	if opts.IsZero() {
		return nil
	}
	p.lib.tbl.PrimClexRefresh(ptr, opts.Settings, opts.Composition, opts.ChemRef, opts.Configs, opts.ClearClex)
	runtime.KeepAlive(p)
	p.lib.logger.Debug(context.Background(), "project refreshed",
		"project", p.id,
		"settings", opts.Settings,
		"composition", opts.Composition,
		"chem_ref", opts.ChemRef,
		"configs", opts.Configs,
		"clear_clex", opts.ClearClex,
	)
	return nil
}

// Close releases the project context. A second Close returns an
// *InvalidHandleUseError.
func (p *Project) Close() error {
	if p == nil || p.ptr == 0 {
		return &InvalidHandleUseError{Handle: HandleProject, Op: "release", Err: ErrNullHandle}
	}
	if !p.released.CompareAndSwap(false, true) {
		return &InvalidHandleUseError{Handle: HandleProject, Op: "release", Err: ErrReleased}
	}
	runtime.SetFinalizer(p, nil)
	p.release()
	p.lib.logger.Debug(context.Background(), "project closed", "project", p.id)
	return nil
}

func (p *Project) finalize() {
	if !p.released.CompareAndSwap(false, true) {
		return
	}
	p.lib.logger.Warn(context.Background(), "project released by finalizer; call Close", "project", p.id, "root", p.root)
	p.release()
}

func (p *Project) release() {
	p.lib.tbl.PrimClexDelete(p.ptr)
	for _, s := range []Sink{p.sinks.Out, p.sinks.Debug, p.sinks.Err} {
		if c, ok := s.(*CapturingSink); ok {
			c.detach()
		}
	}
}
