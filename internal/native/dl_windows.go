//go:build windows

package native

// CASM does not ship Windows builds; Load reports ErrNotBuilt.
var platform = dynlib{}
