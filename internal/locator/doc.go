// Package locator resolves the on-disk paths of the CASM engine library
// (libcasm) and its C binding library (libccasm) from an installed casm
// executable.
//
// The executable is found on PATH and is never run. Its direct shared-library
// dependencies are listed with a platform strategy selected once from the host
// OS: otool -L for Mach-O hosts, ldd everywhere else. The binding library is
// expected next to the engine library and is derived from its file name.
package locator
