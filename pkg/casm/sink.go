package casm

import (
	"context"
	"runtime"
	"sync/atomic"
)

// Sink is a destination for engine output. Only this package creates sinks.
type Sink interface {
	sinkHandle(op string) (uintptr, error)
}

type standardSink struct {
	name string
	ptr  uintptr
}

func (s standardSink) sinkHandle(string) (uintptr, error) { return s.ptr, nil }

func (s standardSink) String() string { return s.name }

// Sinks is the set of sinks a project context or command writes to. Nil
// fields default to the engine's stdout, null and stderr sinks.
type Sinks struct {
	Out   Sink
	Debug Sink
	Err   Sink
}

func (l *Library) sinkHandles(s Sinks, op string) (out, debug, errs uintptr, err error) {
	if s.Out == nil {
		s.Out = l.stdout
	}
	if s.Debug == nil {
		s.Debug = l.null
	}
	if s.Err == nil {
		s.Err = l.stderr
	}
	if out, err = s.Out.sinkHandle(op); err != nil {
		return 0, 0, 0, err
	}
	if debug, err = s.Debug.sinkHandle(op); err != nil {
		return 0, 0, 0, err
	}
	if errs, err = s.Err.sinkHandle(op); err != nil {
		return 0, 0, 0, err
	}
	return out, debug, errs, nil
}

// CapturingSink is a caller-owned sink backed by an in-memory buffer.
type CapturingSink struct {
	lib *Library
	ptr uintptr
	id  string

	released atomic.Bool
	attached atomic.Int32
}

// NewCapture allocates a capturing sink. The caller must Close it.
func (l *Library) NewCapture() (*CapturingSink, error) {
	ptr := l.tbl.OStringStreamNew()
	if ptr == 0 {
		return nil, &InvalidHandleUseError{Handle: HandleCapture, Op: "create", Err: ErrNullHandle}
	}
	c := &CapturingSink{lib: l, ptr: ptr, id: newID()}
	runtime.SetFinalizer(c, (*CapturingSink).finalize)
	return c, nil
}

// WithCapture runs fn with a fresh capturing sink and returns what was
// written to it. The sink is released on every exit path.
func (l *Library) WithCapture(fn func(*CapturingSink) error) (_ []byte, err error) {
	c, err := l.NewCapture()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	if err := fn(c); err != nil {
		return nil, err
	}
	return c.Bytes()
}

func (c *CapturingSink) sinkHandle(op string) (uintptr, error) {
	if c == nil || c.ptr == 0 {
		return 0, &InvalidHandleUseError{Handle: HandleCapture, Op: op, Err: ErrNullHandle}
	}
	if c.released.Load() {
		return 0, &InvalidHandleUseError{Handle: HandleCapture, Op: op, Err: ErrReleased}
	}
	return c.ptr, nil
}

// Len returns the number of bytes written so far.
func (c *CapturingSink) Len() (int, error) {
	ptr, err := c.sinkHandle("size")
	if err != nil {
		return 0, err
	}
	n := c.lib.tbl.OStringStreamSize(ptr)
	runtime.KeepAlive(c)
	return int(n), nil
}

// Bytes returns a copy of everything written since the sink was created.
// It may be called any number of times before Close.
func (c *CapturingSink) Bytes() ([]byte, error) {
	ptr, err := c.sinkHandle("read")
	if err != nil {
		return nil, err
	}
	n := int(c.lib.tbl.OStringStreamSize(ptr))
	// One extra byte for the terminator written by the copy.
	buf := make([]byte, n+1)
	c.lib.tbl.OStringStreamStrcpy(ptr, &buf[0])
	runtime.KeepAlive(c)
	return buf[:n:n], nil
}

// String is Bytes as a string.
func (c *CapturingSink) String() (string, error) {
	b, err := c.Bytes()
	return string(b), err
}

// Close releases the sink. A second Close, or closing a sink that an open
// Project still writes to, returns an *InvalidHandleUseError.
func (c *CapturingSink) Close() error {
	if c == nil || c.ptr == 0 {
		return &InvalidHandleUseError{Handle: HandleCapture, Op: "release", Err: ErrNullHandle}
	}
	if c.attached.Load() > 0 {
		return &InvalidHandleUseError{Handle: HandleCapture, Op: "release", Err: ErrSinkInUse}
	}
	if !c.released.CompareAndSwap(false, true) {
		return &InvalidHandleUseError{Handle: HandleCapture, Op: "release", Err: ErrReleased}
	}
	runtime.SetFinalizer(c, nil)
	c.lib.tbl.OStringStreamDelete(c.ptr)
	return nil
}

func (c *CapturingSink) finalize() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	c.lib.logger.Warn(context.Background(), "capturing sink released by finalizer; call Close", "sink", c.id)
	c.lib.tbl.OStringStreamDelete(c.ptr)
}

func (c *CapturingSink) attach(op string) error {
	if _, err := c.sinkHandle(op); err != nil {
		return err
	}
	c.attached.Add(1)
	return nil
}

func (c *CapturingSink) detach() {
	c.attached.Add(-1)
}
