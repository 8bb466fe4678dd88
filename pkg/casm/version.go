package casm

// Version is populated at build time via ldflags.
var Version = "v0.0.0-in-progress"

// WrapperVersion returns the version of these bindings.
func WrapperVersion() string {
	return Version
}
