// Package native owns the process-wide session with the CASM shared
// libraries.
//
// # Design Principles
//
// 1. Isolation: this is the only package that touches purego or raw native
//    addresses. Everything above it sees opaque uintptr handles and the
//    function fields of Table.
//
// 2. One table: every entry point the binding library exposes is declared
//    once in Signatures. Symbols are resolved and checked when the session is
//    built; call sites never look anything up.
//
// 3. Load once: both libraries are opened with RTLD_GLOBAL so libccasm can
//    resolve symbols from libcasm. The session is built at most once per
//    process and never unloaded. A failed build is sticky.
//
// # Threading
//
// Session construction is safe for concurrent use. The engine itself is not
// thread-safe for a given project context; callers serialise access.
package native
