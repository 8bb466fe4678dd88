// Package casm binds the CASM engine through the C API of libccasm.
//
// A Library is the entry point. Open locates libcasm and libccasm from the
// casm executable on PATH (or from explicit paths in Config), loads both once
// per process and binds the fixed set of entry points. Every Library value in
// a process shares that session; the libraries are never unloaded.
//
// # Handles
//
// The engine hands out three kinds of handle:
//
//   - Standard sinks (Library.Stdout, Library.Stderr, Library.Null) are owned
//     by the engine and need no release.
//   - A CapturingSink collects engine output in memory. It is created by
//     Library.NewCapture and must be closed exactly once.
//   - A Project is an open project context (the engine's PrimClex). It is
//     created by Library.OpenProject and must be closed exactly once.
//
// Use of a handle after Close, including a second Close, returns an
// *InvalidHandleUseError. Library.WithCapture and Library.WithProject scope a
// handle to a function and release it on every exit path. A handle that is
// garbage collected without Close is released by a finalizer and reported at
// warn level.
//
// # Commands
//
// Library.Dispatch runs one casm command line, such as
//
//	"query -k structure -c NONE --confignames SCEL1_1_1_1_0_0_0/0 -j -o STDOUT"
//
// and returns its Status. Output goes to whichever sinks the caller supplied;
// Library.Capture collects it into an Output. A non-zero status is data, not an
// error; Output.Err converts it into a *CommandError when the caller wants
// that.
//
// # Threading
//
// The engine is not thread-safe. A Project and the sinks passed with it must
// be used by one goroutine at a time; this package does no locking on the
// caller's behalf.
package casm
