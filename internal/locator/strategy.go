package locator

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Strategy lists the direct shared-library dependencies of an executable and
// picks the engine library out of that listing.
type Strategy interface {
	// Name identifies the strategy in diagnostics.
	Name() string
	// Command returns the introspection command for exe.
	Command(exe string) (name string, args []string)
	// Pick returns the resolved path of the first dependency whose file name
	// contains base.
	Pick(exe, listing, base string) (string, bool)
}

// StrategyFor returns the strategy for the given GOOS value.
func StrategyFor(goos string) Strategy {
	switch goos {
	case "darwin", "ios":
		return MachO{}
	default:
		return ELF{}
	}
}

// MachO reads `otool -L` output:
//
//	/usr/local/bin/casm:
//		@loader_path/../lib/libcasm.0.dylib (compatibility version 1.0.0, ...)
//
// @loader_path and @executable_path expand to the executable's directory.
// @rpath is tried against that directory and ../lib next to it; the
// executable's LC_RPATH entries are not read.
type MachO struct {
	// Exists reports whether an @rpath candidate is present. Nil uses os.Stat.
	Exists func(path string) bool
}

func (MachO) Name() string { return "otool" }

func (MachO) Command(exe string) (string, []string) {
	return "otool", []string{"-L", exe}
}

func (m MachO) Pick(exe, listing, base string) (string, bool) {
	dir := filepath.Dir(exe)
	sc := bufio.NewScanner(strings.NewReader(listing))
	for sc.Scan() {
		line := sc.Text()
		// The header line is the executable itself, terminated by a colon.
		if !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, " ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || !strings.Contains(filepath.Base(fields[0]), base) {
			continue
		}
		p := fields[0]
		if rest, ok := strings.CutPrefix(p, "@rpath/"); ok {
			return m.rpath(dir, rest), true
		}
		p = strings.Replace(p, "@loader_path", dir, 1)
		p = strings.Replace(p, "@executable_path", dir, 1)
		return filepath.Clean(p), true
	}
	return "", false
}

// rpath returns the first existing candidate for rest, or the ../lib one.
func (m MachO) rpath(dir, rest string) string {
	exists := m.Exists
	if exists == nil {
		exists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}
	candidates := []string{
		filepath.Join(dir, rest),
		filepath.Join(dir, "..", "lib", rest),
	}
	for _, c := range candidates {
		if exists(c) {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// ELF reads `ldd` output:
//
//	libcasm.so.0 => /usr/local/lib/libcasm.so.0 (0x00007f...)
type ELF struct{}

func (ELF) Name() string { return "ldd" }

func (ELF) Command(exe string) (string, []string) {
	return "ldd", []string{exe}
}

func (ELF) Pick(_, listing, base string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(listing))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[1] != "=>" {
			continue
		}
		if !strings.Contains(fields[0], base) || !filepath.IsAbs(fields[2]) {
			continue
		}
		return fields[2], true
	}
	return "", false
}
