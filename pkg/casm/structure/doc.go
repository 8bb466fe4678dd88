// Package structure reads configuration structures out of a CASM project
// through the command API and writes them as CASM structure files.
//
// Structures are requested with
//
//	query -k structure -c <selection> [--confignames <names>...] -j -o STDOUT
//
// and decoded from the captured JSON. Export writes one
// <dir>/<configname>/structure.casm.json per record.
package structure
