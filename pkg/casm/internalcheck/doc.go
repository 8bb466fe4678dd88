// Package internalcheck holds source-policy tests for the module.
//
// It has no API. The tests load the module with golang.org/x/tools/go/packages
// and fail when raw native access (unsafe, purego) leaks out of
// internal/native.
package internalcheck
