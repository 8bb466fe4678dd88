//go:build !windows

package native

import "github.com/ebitengine/purego"

var platform = dynlib{
	open: func(path string) (uintptr, error) {
		return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	},
	sym:      purego.Dlsym,
	register: purego.RegisterFunc,
}
