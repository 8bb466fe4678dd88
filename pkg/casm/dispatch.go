package casm

import (
	"context"
	"runtime"
)

// Dispatch runs one casm command line against project, with output going to
// sinks. A nil project passes no context, for commands that do not need one
// or that should load the project at root themselves. An empty root defaults
// to project.Root().
//
// The returned Status is the command's outcome; a non-zero Status is not an
// error. The error is non-nil only when a handle is unusable, in which case
// the engine is not called.
func (l *Library) Dispatch(args string, project *Project, root string, sinks Sinks) (Status, error) {
	var ctx uintptr
	if project != nil {
		h, err := project.handle("dispatch with")
		if err != nil {
			return StatusUnknown, err
		}
		ctx = h
		if root == "" {
			root = project.root
		}
	}
	out, debug, errs, err := l.sinkHandles(sinks, "dispatch with")
	if err != nil {
		return StatusUnknown, err
	}

	rc := l.tbl.CAPI(args, ctx, root, out, debug, errs)
	runtime.KeepAlive(project)
	runtime.KeepAlive(sinks)

	st := Status(rc)
	if !st.Valid() {
		l.logger.Warn(context.Background(), "casm returned unrecognised status", "args", args, "rc", rc)
		st = StatusUnknown
	}
	l.logger.Debug(context.Background(), "casm dispatch", "args", args, "root", root, "status", st.String())
	return st, nil
}

// Run dispatches args against p with p's root.
func (p *Project) Run(args string, sinks Sinks) (Status, error) {
	if _, err := p.handle("dispatch with"); err != nil {
		return StatusUnknown, err
	}
	return p.lib.Dispatch(args, p, p.root, sinks)
}

// CaptureOptions tunes Library.Capture.
type CaptureOptions struct {
	// Combine sends standard and error output to a single sink; the result is
	// reported in Output.Stdout.
	Combine bool
	// Debug receives debug output. Nil discards it.
	Debug Sink
}

// Output is the captured result of one command.
type Output struct {
	Args   string
	Status Status
	Stdout []byte
	Stderr []byte

	// Combined is set when both streams went to Stdout.
	Combined bool
}

// Err returns a *CommandError when the command failed, nil otherwise. For a
// combined capture the error text is taken from Stdout.
func (o *Output) Err() error {
	if o.Status == StatusOK {
		return nil
	}
	stderr := o.Stderr
	if o.Combined {
		stderr = o.Stdout
	}
	return &CommandError{Args: o.Args, Status: o.Status, Stderr: string(stderr)}
}

// Capture dispatches args with fresh capturing sinks for standard and error
// output and returns what the command wrote. The sinks are released before
// Capture returns.
func (l *Library) Capture(args string, project *Project, root string, opts CaptureOptions) (_ *Output, err error) {
	out, err := l.NewCapture()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	errSink := out
	if !opts.Combine {
		if errSink, err = l.NewCapture(); err != nil {
			return nil, err
		}
		defer func() {
			if cerr := errSink.Close(); err == nil {
				err = cerr
			}
		}()
	}

	st, err := l.Dispatch(args, project, root, Sinks{Out: out, Debug: opts.Debug, Err: errSink})
	if err != nil {
		return nil, err
	}

	res := &Output{Args: args, Status: st, Combined: opts.Combine}
	if res.Stdout, err = out.Bytes(); err != nil {
		return nil, err
	}
	if !opts.Combine {
		if res.Stderr, err = errSink.Bytes(); err != nil {
			return nil, err
		}
	}
	return res, nil
}
